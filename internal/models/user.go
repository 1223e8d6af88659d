package models

import (
	"time"

	"github.com/google/uuid"
)

// Tier represents the user's effective membership tier. It is derived from the
// subscription state machine and read by client-facing authorization checks.
type Tier string

const (
	TierFree    Tier = "free"
	TierMember  Tier = "member"
	TierPremium Tier = "premium"
)

// User represents an app user (viewer or creator).
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	FullName  string    `json:"full_name"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Tier:      u.Tier,
		CreatedAt: u.CreatedAt,
	}
}
