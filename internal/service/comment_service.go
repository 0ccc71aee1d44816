package service

import (
	"context"

	"chirp/internal/models"
	"chirp/internal/observability"
	"chirp/internal/repository"
	"chirp/internal/validation"
)

const maxCommentLen = 500

// CommentService manages comments and their one-level reply threads.
type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
}

type CreateCommentInput struct {
	PostID          string
	UserID          string
	Content         string
	ParentCommentID *string
}

// NewCommentService creates a new comment service
func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		userRepo:    userRepo,
	}
}

func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (comment *models.Comment, err error) {
	ctx, end := startSpan(ctx, "CommentService", "Create")
	defer end(&err)

	if err := validation.StringLength(in.Content, 1, maxCommentLen, "content"); err != nil {
		return nil, err
	}
	if _, err := s.postRepo.GetByID(ctx, in.PostID); err != nil {
		return nil, err
	}
	author, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if in.ParentCommentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *in.ParentCommentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != in.PostID {
			return nil, models.NewValidationError("parent comment belongs to a different post")
		}
	}

	comment = &models.Comment{
		PostID:          in.PostID,
		UserID:          in.UserID,
		Content:         in.Content,
		ParentCommentID: in.ParentCommentID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	comment.Username = author.Username
	comment.ProfileImage = author.ProfileImage
	return comment, nil
}

func (s *CommentService) FindByID(ctx context.Context, id string) (*models.Comment, error) {
	return s.commentRepo.GetByID(ctx, id)
}

// FindByPost lists top-level comments of a post, newest first.
func (s *CommentService) FindByPost(ctx context.Context, postID string, page Pagination) ([]*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID, page.Limit, page.Offset)
}

// FindReplies lists the direct replies of a comment, newest first.
func (s *CommentService) FindReplies(ctx context.Context, commentID string, page Pagination) ([]*models.Comment, error) {
	if _, err := s.commentRepo.GetByID(ctx, commentID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListReplies(ctx, commentID, page.Limit, page.Offset)
}

func (s *CommentService) Update(ctx context.Context, id string, content *string) (*models.Comment, error) {
	if content == nil {
		return nil, models.NewValidationError("content is required")
	}
	if err := validation.StringLength(*content, 1, maxCommentLen, "content"); err != nil {
		return nil, err
	}
	if err := s.commentRepo.UpdateContent(ctx, id, *content); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, id)
}

// Delete removes the comment and its direct replies. Deeper replies are kept.
func (s *CommentService) Delete(ctx context.Context, id string) error {
	return s.commentRepo.DeleteWithReplies(ctx, id)
}

func (s *CommentService) Like(ctx context.Context, commentID, userID string) (*models.Comment, error) {
	if err := s.requireCommentAndUser(ctx, commentID, userID); err != nil {
		return nil, err
	}
	added, err := s.commentRepo.Like(ctx, commentID, userID)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, models.NewValidationError("comment already liked")
	}
	observability.LikesTotal.WithLabelValues("comment", "like").Inc()
	return s.commentRepo.GetByID(ctx, commentID)
}

// Unlike is idempotent.
func (s *CommentService) Unlike(ctx context.Context, commentID, userID string) (*models.Comment, error) {
	if err := s.requireCommentAndUser(ctx, commentID, userID); err != nil {
		return nil, err
	}
	removed, err := s.commentRepo.Unlike(ctx, commentID, userID)
	if err != nil {
		return nil, err
	}
	if removed {
		observability.LikesTotal.WithLabelValues("comment", "unlike").Inc()
	}
	return s.commentRepo.GetByID(ctx, commentID)
}

func (s *CommentService) requireCommentAndUser(ctx context.Context, commentID, userID string) error {
	if _, err := s.commentRepo.GetByID(ctx, commentID); err != nil {
		return err
	}
	_, err := s.userRepo.GetByID(ctx, userID)
	return err
}
