package model

import (
	"time"

	"github.com/google/uuid"
)

// AccountModel mirrors the 'accounts' table. PostgreSQL generates UUIDs via gen_random_uuid().
// Username is NULL while the account is a provisional placeholder; PostgreSQL allows many NULLs under the unique index.
type AccountModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Username  *string   `gorm:"type:varchar(150);uniqueIndex:idx_accounts_username"`
	Email     string    `gorm:"type:varchar(255)"`
	Status    string    `gorm:"type:varchar(20);not null;default:'provisional';check:chk_accounts_status,status IN ('provisional','finalized')"`
	CreatedAt time.Time
	UpdatedAt time.Time

	IdentityLinks []IdentityLinkModel `gorm:"foreignKey:AccountID;constraint:OnDelete:RESTRICT"`
}

// TableName explicitly sets the table name for GORM.
func (AccountModel) TableName() string {
	return "accounts"
}
