package dbschema

import (
	"time"

	"chatlima-server/internal/domain/user"
)

// User is the persisted account or anonymous session owner.
type User struct {
	ID           string    `gorm:"type:varchar(64);primaryKey"`
	Issuer       string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_users_issuer_subject"`
	Subject      string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_users_issuer_subject"`
	Email        *string   `gorm:"type:varchar(320)"`
	Name         *string   `gorm:"type:varchar(255)"`
	IsAnonymous  bool      `gorm:"not null;default:false"`
	LastActiveAt time.Time `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string { return "users" }

// NewSchemaUser converts a domain user into a schema instance.
func NewSchemaUser(u *user.User) *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:           u.ID,
		Issuer:       u.Issuer,
		Subject:      u.Subject,
		Email:        u.Email,
		Name:         u.Name,
		IsAnonymous:  u.IsAnonymous,
		LastActiveAt: u.LastActiveAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// EtoD converts a schema user back to the domain representation.
func (u *User) EtoD() *user.User {
	if u == nil {
		return nil
	}
	return &user.User{
		ID:           u.ID,
		Issuer:       u.Issuer,
		Subject:      u.Subject,
		Email:        u.Email,
		Name:         u.Name,
		IsAnonymous:  u.IsAnonymous,
		LastActiveAt: u.LastActiveAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
