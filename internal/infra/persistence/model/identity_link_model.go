package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProfileData is the JSON document stored in identity_links.profile.
type ProfileData struct {
	PreferredUsername string `json:"preferredUsername,omitempty"`
	DisplayName       string `json:"displayName,omitempty"`
	Email             string `json:"email,omitempty"`
	VerifiedEmail     string `json:"verifiedEmail,omitempty"`
	Photo             string `json:"photo,omitempty"`
}

// IdentityLinkModel mirrors the 'identity_links' table.
type IdentityLinkModel struct {
	ID           uuid.UUID                       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AccountID    uuid.UUID                       `gorm:"type:uuid;not null;index:idx_identity_links_account_id"`
	Provider     string                          `gorm:"type:varchar(255);not null"`
	Identifier   string                          `gorm:"type:varchar(255);not null;uniqueIndex:idx_identity_links_identifier"`
	Profile      datatypes.JSONType[ProfileData] `gorm:"type:jsonb;not null"`
	IsAssociated bool                            `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName explicitly sets the table name for GORM.
func (IdentityLinkModel) TableName() string {
	return "identity_links"
}

// All returns every model managed by the persistence layer, in dependency order.
func All() []any {
	return []any{&AccountModel{}, &IdentityLinkModel{}}
}
