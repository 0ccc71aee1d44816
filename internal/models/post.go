package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a short message. Hashtags is always derived from Content at the
// last write.
type Post struct {
	ID       string   `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID   string   `gorm:"type:varchar(36);not null;index" json:"userId"`
	Content  string   `gorm:"size:280;not null" json:"content"`
	Hashtags []string `gorm:"serializer:json;type:text" json:"hashtags"`
	Media    []string `gorm:"serializer:json;type:text" json:"media"`
	Likes    []string `gorm:"-" json:"likes"`
	Retweets []string `gorm:"-" json:"retweets"`
	// Username is not persisted; joined from users at query time
	Username string `gorm:"->;-:migration" json:"username,omitempty"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int       `gorm:"->;-:migration" json:"commentsCount"`
	CreatedAt     time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// PostHashtag indexes a post under one of its hashtags.
type PostHashtag struct {
	PostID string `gorm:"type:varchar(36);primaryKey"`
	Tag    string `gorm:"size:280;primaryKey;index"`
}

// PostLike records that UserID liked PostID. The composite key makes likes a set.
type PostLike struct {
	PostID    string `gorm:"type:varchar(36);primaryKey"`
	UserID    string `gorm:"type:varchar(36);primaryKey;index"`
	CreatedAt time.Time
}

// PostRetweet records that UserID retweeted PostID.
type PostRetweet struct {
	PostID    string `gorm:"type:varchar(36);primaryKey"`
	UserID    string `gorm:"type:varchar(36);primaryKey;index"`
	CreatedAt time.Time
}
