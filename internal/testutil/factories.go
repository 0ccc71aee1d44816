package testutil

import (
	"strings"
	"testing"

	"chirp/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the plain-text password of every factory user.
const DefaultPassword = "password123"

var defaultHash = func() string {
	h, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}()

// NewUser builds an unsaved user with a valid random username and email.
func NewUser() *models.User {
	return &models.User{
		Username: "u_" + strings.ToLower(gofakeit.LetterN(10)),
		Email:    strings.ToLower(gofakeit.LetterN(8)) + "@" + gofakeit.DomainName(),
		Password: defaultHash,
		Bio:      gofakeit.Sentence(6),
	}
}

// CreateUser persists a factory user, applying opts before the insert.
func CreateUser(t testing.TB, db *gorm.DB, opts ...func(*models.User)) *models.User {
	t.Helper()
	u := NewUser()
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePost persists a post by userID. Hashtags are stored as given.
func CreatePost(t testing.TB, db *gorm.DB, userID, content string, hashtags ...string) *models.Post {
	t.Helper()
	if content == "" {
		content = gofakeit.Sentence(8)
	}
	if hashtags == nil {
		hashtags = []string{}
	}
	p := &models.Post{UserID: userID, Content: content, Hashtags: hashtags, Media: []string{}}
	require.NoError(t, db.Create(p).Error)
	for _, tag := range hashtags {
		require.NoError(t, db.Create(&models.PostHashtag{PostID: p.ID, Tag: tag}).Error)
	}
	return p
}

// CreateComment persists a comment; parentID may be nil for a top-level comment.
func CreateComment(t testing.TB, db *gorm.DB, postID, userID string, parentID *string) *models.Comment {
	t.Helper()
	c := &models.Comment{PostID: postID, UserID: userID, Content: gofakeit.Sentence(5), ParentCommentID: parentID}
	require.NoError(t, db.Create(c).Error)
	return c
}
