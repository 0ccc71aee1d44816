package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment belongs to a post and optionally replies to another comment.
// PostID is an opaque reference; there is no foreign key on it.
type Comment struct {
	ID              string   `gorm:"type:varchar(36);primaryKey" json:"id"`
	PostID          string   `gorm:"type:varchar(36);not null;index" json:"postId"`
	UserID          string   `gorm:"type:varchar(36);not null;index" json:"userId"`
	Content         string   `gorm:"size:500;not null" json:"content"`
	ParentCommentID *string  `gorm:"type:varchar(36);index" json:"parentCommentId"`
	Likes           []string `gorm:"-" json:"likes"`
	// Username and ProfileImage are joined from users at query time
	Username     string    `gorm:"->;-:migration" json:"username,omitempty"`
	ProfileImage string    `gorm:"->;-:migration" json:"profileImage,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (c *Comment) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// CommentLike records that UserID liked CommentID.
type CommentLike struct {
	CommentID string `gorm:"type:varchar(36);primaryKey"`
	UserID    string `gorm:"type:varchar(36);primaryKey;index"`
	CreatedAt time.Time
}
