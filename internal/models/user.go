// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a registered account. Followers and Following are derived from the
// follows table and are never written through this struct.
type User struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Username     string    `gorm:"size:30;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password     string    `gorm:"not null" json:"-"`
	Bio          string    `gorm:"type:text" json:"bio"`
	ProfileImage string    `gorm:"size:2048" json:"profileImage"`
	Followers    []string  `gorm:"-" json:"followers"`
	Following    []string  `gorm:"-" json:"following"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Follow is one directed edge of the social graph: FollowerID follows FolloweeID.
type Follow struct {
	FollowerID string    `gorm:"type:varchar(36);primaryKey" json:"followerId"`
	FolloweeID string    `gorm:"type:varchar(36);primaryKey;index" json:"followeeId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Profile is the public view of a user as seen by an optional viewer.
type Profile struct {
	*User
	IsFollowing bool `json:"isFollowing"`
}
