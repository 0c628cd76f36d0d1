// Package persistence selects the identity record store backing the repositories.
package persistence

import (
	"idlink/internal/domain/constants"
	"idlink/internal/domain/repository"
	"idlink/internal/infra/persistence/memory"
	"idlink/internal/infra/persistence/postgres"

	"github.com/pkg/errors"
)

// NewTransactionManager opens the store named by storage.driver.
func NewTransactionManager(params postgres.Params) (repository.TransactionManager, error) {
	switch driver := params.Config.Storage.Driver; driver {
	case constants.StorageDriverPostgres:
		db, err := postgres.New(params)
		if err != nil {
			return nil, err
		}

		return postgres.NewTransactionManager(db), nil
	case constants.StorageDriverMemory:
		params.Logger.Warn("Using in-memory identity store, records are lost on restart")

		return memory.NewTransactionManager(memory.NewStore()), nil
	default:
		return nil, errors.Errorf("unknown storage driver: %s", driver)
	}
}
