package postgres

import (
	"context"

	"idlink/internal/domain/entity"
	domainerrors "idlink/internal/domain/errors"
	"idlink/internal/domain/repository"
	"idlink/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// identityLinkRepository implements repository.IdentityLinkRepository using GORM.
type identityLinkRepository struct {
	db *gorm.DB
}

// NewIdentityLinkRepository is the constructor for identityLinkRepository.
func NewIdentityLinkRepository(db *gorm.DB) repository.IdentityLinkRepository {
	return &identityLinkRepository{db: db}
}

// Create persists a new link.
func (repo *identityLinkRepository) Create(ctx context.Context, link *entity.ExternalIdentityLink) error {
	linkM := fromIdentityLinkDomain(link)

	if err := repo.db.WithContext(ctx).Create(linkM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrIdentityAlreadyExists
		}
		if isForeignKeyConstraintViolation(err) {
			return domainerrors.ErrAccountCreationFailed.WrapMessage("invalid account reference")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create identity link")
	}

	link.ID = linkM.ID
	link.CreatedAt = linkM.CreatedAt
	link.UpdatedAt = linkM.UpdatedAt

	return nil
}

// FindByIdentifier retrieves the link for a provider-issued identifier.
// The lookup always hits the primary so a link created by a previous callback is never missed on a lagging replica.
func (repo *identityLinkRepository) FindByIdentifier(ctx context.Context, identifier string) (*entity.ExternalIdentityLink, error) {
	var linkM model.IdentityLinkModel
	err := repo.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("identifier = ?", identifier).
		First(&linkM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrLinkNotFound
		}

		return nil, errors.Wrap(err, "failed to find identity link by identifier")
	}

	return toIdentityLinkDomain(&linkM), nil
}

// FindByIDAndAccountID retrieves a link only when it belongs to the given account.
func (repo *identityLinkRepository) FindByIDAndAccountID(ctx context.Context, id, accountID uuid.UUID) (*entity.ExternalIdentityLink, error) {
	var linkM model.IdentityLinkModel
	err := repo.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", id, accountID).
		First(&linkM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrLinkNotFound
		}

		return nil, errors.WithStack(err)
	}

	return toIdentityLinkDomain(&linkM), nil
}

// ListByAccountID returns every link owned by the account, oldest first.
func (repo *identityLinkRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*entity.ExternalIdentityLink, error) {
	var linkModels []model.IdentityLinkModel
	err := repo.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&linkModels).Error
	if err != nil {
		return nil, errors.WithStack(err)
	}

	links := make([]*entity.ExternalIdentityLink, 0, len(linkModels))
	for i := range linkModels {
		links = append(links, toIdentityLinkDomain(&linkModels[i]))
	}

	return links, nil
}

// CountByAccountID returns how many links the account owns.
func (repo *identityLinkRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&model.IdentityLinkModel{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return count, nil
}

// Update saves owner, association flag and profile.
func (repo *identityLinkRepository) Update(ctx context.Context, link *entity.ExternalIdentityLink) error {
	result := repo.db.WithContext(ctx).
		Model(&model.IdentityLinkModel{}).
		Where("id = ?", link.ID).
		Updates(map[string]any{
			"account_id":    link.AccountID,
			"is_associated": link.IsAssociated,
			"profile":       datatypes.NewJSONType(fromProfileDomain(link.Profile)),
		})
	if result.Error != nil {
		if isForeignKeyConstraintViolation(result.Error) {
			return domainerrors.ErrAccountUpdateFailed.WrapMessage("invalid account reference")
		}

		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update identity link")
	}
	if result.RowsAffected == 0 {
		return repository.ErrLinkNotFound
	}

	return nil
}

// Delete removes a link by its ID.
func (repo *identityLinkRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := repo.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.IdentityLinkModel{})
	if result.Error != nil {
		return errors.WithStack(result.Error)
	}

	if result.RowsAffected == 0 {
		return repository.ErrLinkNotFound
	}

	return nil
}

// --- Mapper Functions ---

func toIdentityLinkDomain(data *model.IdentityLinkModel) *entity.ExternalIdentityLink {
	if data == nil {
		return nil
	}

	profile := data.Profile.Data()

	return &entity.ExternalIdentityLink{
		ID:         data.ID,
		AccountID:  data.AccountID,
		Provider:   data.Provider,
		Identifier: data.Identifier,
		Profile: entity.Profile{
			PreferredUsername: profile.PreferredUsername,
			DisplayName:       profile.DisplayName,
			Email:             profile.Email,
			VerifiedEmail:     profile.VerifiedEmail,
			PhotoURL:          profile.Photo,
		},
		IsAssociated: data.IsAssociated,
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}
}

func fromIdentityLinkDomain(data *entity.ExternalIdentityLink) *model.IdentityLinkModel {
	if data == nil {
		return nil
	}

	return &model.IdentityLinkModel{
		ID:           data.ID,
		AccountID:    data.AccountID,
		Provider:     data.Provider,
		Identifier:   data.Identifier,
		Profile:      datatypes.NewJSONType(fromProfileDomain(data.Profile)),
		IsAssociated: data.IsAssociated,
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}
}

func fromProfileDomain(p entity.Profile) model.ProfileData {
	return model.ProfileData{
		PreferredUsername: p.PreferredUsername,
		DisplayName:       p.DisplayName,
		Email:             p.Email,
		VerifiedEmail:     p.VerifiedEmail,
		Photo:             p.PhotoURL,
	}
}
