package service

import (
	"context"
	"errors"
	"testing"

	"chirp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn       func(context.Context, string) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
	updateFn        func(context.Context, string, map[string]any) error
	deleteFn        func(context.Context, string) error
	listFn          func(context.Context, int, int) ([]*models.User, error)
	followFn        func(context.Context, string, string) (bool, error)
	unfollowFn      func(context.Context, string, string) (bool, error)
	isFollowingFn   func(context.Context, string, string) (bool, error)
	calls           int
}

func (s *userRepoStub) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.calls++
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.calls++
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	s.calls++
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	s.calls++
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, id string, fields map[string]any) error {
	s.calls++
	return s.updateFn(ctx, id, fields)
}
func (s *userRepoStub) Delete(ctx context.Context, id string) error {
	s.calls++
	return s.deleteFn(ctx, id)
}
func (s *userRepoStub) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	s.calls++
	return s.listFn(ctx, limit, offset)
}
func (s *userRepoStub) Follow(ctx context.Context, followerID, followeeID string) (bool, error) {
	s.calls++
	return s.followFn(ctx, followerID, followeeID)
}
func (s *userRepoStub) Unfollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	s.calls++
	return s.unfollowFn(ctx, followerID, followeeID)
}
func (s *userRepoStub) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	s.calls++
	return s.isFollowingFn(ctx, followerID, followeeID)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:       func(_ context.Context, id string) (*models.User, error) { return &models.User{ID: id}, nil },
		getByEmailFn:    func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByUsernameFn: func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn:        func(_ context.Context, _ *models.User) error { return nil },
		updateFn:        func(_ context.Context, _ string, _ map[string]any) error { return nil },
		deleteFn:        func(_ context.Context, _ string) error { return nil },
		listFn:          func(_ context.Context, _, _ int) ([]*models.User, error) { return nil, nil },
		followFn:        func(_ context.Context, _, _ string) (bool, error) { return true, nil },
		unfollowFn:      func(_ context.Context, _, _ string) (bool, error) { return true, nil },
		isFollowingFn:   func(_ context.Context, _, _ string) (bool, error) { return false, nil },
	}
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn        func(context.Context, *models.Post) error
	getByIDFn       func(context.Context, string) (*models.Post, error)
	listByUserFn    func(context.Context, string, int, int) ([]*models.Post, error)
	listByHashtagFn func(context.Context, string, int, int) ([]*models.Post, error)
	listTimelineFn  func(context.Context, string, bool, int, int) ([]*models.Post, error)
	updateFn        func(context.Context, *models.Post, ...string) error
	deleteFn        func(context.Context, string) error
	likeFn          func(context.Context, string, string) (bool, error)
	unlikeFn        func(context.Context, string, string) (bool, error)
	retweetFn       func(context.Context, string, string) (bool, error)
	unretweetFn     func(context.Context, string, string) (bool, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id string) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Post, error) {
	return s.listByUserFn(ctx, userID, limit, offset)
}
func (s *postRepoStub) ListByHashtag(ctx context.Context, tag string, limit, offset int) ([]*models.Post, error) {
	return s.listByHashtagFn(ctx, tag, limit, offset)
}
func (s *postRepoStub) ListTimeline(ctx context.Context, viewerID string, followingOnly bool, limit, offset int) ([]*models.Post, error) {
	return s.listTimelineFn(ctx, viewerID, followingOnly, limit, offset)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post, columns ...string) error {
	return s.updateFn(ctx, post, columns...)
}
func (s *postRepoStub) Delete(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) Like(ctx context.Context, postID, userID string) (bool, error) {
	return s.likeFn(ctx, postID, userID)
}
func (s *postRepoStub) Unlike(ctx context.Context, postID, userID string) (bool, error) {
	return s.unlikeFn(ctx, postID, userID)
}
func (s *postRepoStub) Retweet(ctx context.Context, postID, userID string) (bool, error) {
	return s.retweetFn(ctx, postID, userID)
}
func (s *postRepoStub) Unretweet(ctx context.Context, postID, userID string) (bool, error) {
	return s.unretweetFn(ctx, postID, userID)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:        func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn:       func(_ context.Context, id string) (*models.Post, error) { return &models.Post{ID: id}, nil },
		listByUserFn:    func(_ context.Context, _ string, _, _ int) ([]*models.Post, error) { return nil, nil },
		listByHashtagFn: func(_ context.Context, _ string, _, _ int) ([]*models.Post, error) { return nil, nil },
		listTimelineFn:  func(_ context.Context, _ string, _ bool, _, _ int) ([]*models.Post, error) { return nil, nil },
		updateFn:        func(_ context.Context, _ *models.Post, _ ...string) error { return nil },
		deleteFn:        func(_ context.Context, _ string) error { return nil },
		likeFn:          func(_ context.Context, _, _ string) (bool, error) { return true, nil },
		unlikeFn:        func(_ context.Context, _, _ string) (bool, error) { return true, nil },
		retweetFn:       func(_ context.Context, _, _ string) (bool, error) { return true, nil },
		unretweetFn:     func(_ context.Context, _, _ string) (bool, error) { return true, nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn            func(context.Context, *models.Comment) error
	getByIDFn           func(context.Context, string) (*models.Comment, error)
	listByPostFn        func(context.Context, string, int, int) ([]*models.Comment, error)
	listRepliesFn       func(context.Context, string, int, int) ([]*models.Comment, error)
	updateContentFn     func(context.Context, string, string) error
	deleteWithRepliesFn func(context.Context, string) error
	likeFn              func(context.Context, string, string) (bool, error)
	unlikeFn            func(context.Context, string, string) (bool, error)
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID string, limit, offset int) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID, limit, offset)
}
func (s *commentRepoStub) ListReplies(ctx context.Context, parentID string, limit, offset int) ([]*models.Comment, error) {
	return s.listRepliesFn(ctx, parentID, limit, offset)
}
func (s *commentRepoStub) UpdateContent(ctx context.Context, id, content string) error {
	return s.updateContentFn(ctx, id, content)
}
func (s *commentRepoStub) DeleteWithReplies(ctx context.Context, id string) error {
	return s.deleteWithRepliesFn(ctx, id)
}
func (s *commentRepoStub) Like(ctx context.Context, commentID, userID string) (bool, error) {
	return s.likeFn(ctx, commentID, userID)
}
func (s *commentRepoStub) Unlike(ctx context.Context, commentID, userID string) (bool, error) {
	return s.unlikeFn(ctx, commentID, userID)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:            func(_ context.Context, _ *models.Comment) error { return nil },
		getByIDFn:           func(_ context.Context, id string) (*models.Comment, error) { return &models.Comment{ID: id}, nil },
		listByPostFn:        func(_ context.Context, _ string, _, _ int) ([]*models.Comment, error) { return nil, nil },
		listRepliesFn:       func(_ context.Context, _ string, _, _ int) ([]*models.Comment, error) { return nil, nil },
		updateContentFn:     func(_ context.Context, _, _ string) error { return nil },
		deleteWithRepliesFn: func(_ context.Context, _ string) error { return nil },
		likeFn:              func(_ context.Context, _, _ string) (bool, error) { return true, nil },
		unlikeFn:            func(_ context.Context, _, _ string) (bool, error) { return true, nil },
	}
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}

func strPtr(s string) *string { return &s }
