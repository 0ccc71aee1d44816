package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"chirp/internal/featureflags"
	"chirp/internal/models"
	"chirp/internal/observability"
	"chirp/internal/repository"
	"chirp/internal/validation"
)

const maxPostLen = 280

var hashtagPattern = regexp.MustCompile(`#(\w+)`)

type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	flags    *featureflags.Manager
}

type CreatePostInput struct {
	UserID  string
	Content string
	Media   []string
}

// UpdatePostInput carries optional changes. A nil Media leaves media as is;
// an empty non-nil slice clears it.
type UpdatePostInput struct {
	Content *string
	Media   []string
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	flags *featureflags.Manager,
) *PostService {
	return &PostService{
		postRepo: postRepo,
		userRepo: userRepo,
		flags:    flags,
	}
}

// ExtractHashtags returns the lowercase tags of content, deduplicated, in
// order of first occurrence.
func ExtractHashtags(content string) []string {
	tags := []string{}
	seen := make(map[string]struct{})
	for _, m := range hashtagPattern.FindAllStringSubmatch(content, -1) {
		tag := strings.ToLower(m[1])
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

func validateMedia(media []string) error {
	if err := validation.Array(media, "media"); err != nil {
		return err
	}
	for i, m := range media {
		if strings.TrimSpace(m) == "" {
			return models.NewValidationError(fmt.Sprintf("media[%d] must be a non-empty string", i))
		}
	}
	return nil
}

func (s *PostService) Create(ctx context.Context, in CreatePostInput) (post *models.Post, err error) {
	ctx, end := startSpan(ctx, "PostService", "Create")
	defer end(&err)

	if err := validation.StringLength(in.Content, 1, maxPostLen, "content"); err != nil {
		return nil, err
	}
	if in.Media == nil {
		in.Media = []string{}
	}
	if err := validateMedia(in.Media); err != nil {
		return nil, err
	}

	author, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	post = &models.Post{
		UserID:   in.UserID,
		Content:  in.Content,
		Hashtags: ExtractHashtags(in.Content),
		Media:    in.Media,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	post.Username = author.Username
	observability.PostsCreated.Inc()
	return post, nil
}

func (s *PostService) FindByID(ctx context.Context, id string) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

func (s *PostService) FindByUser(ctx context.Context, userID string, page Pagination) ([]*models.Post, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.postRepo.ListByUser(ctx, userID, page.Limit, page.Offset)
}

// FindByHashtag accepts the tag with or without its leading '#'.
func (s *PostService) FindByHashtag(ctx context.Context, tag string, page Pagination) ([]*models.Post, error) {
	tag = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
	if tag == "" {
		return nil, models.NewValidationError("hashtag is required")
	}
	return s.postRepo.ListByHashtag(ctx, tag, page.Limit, page.Offset)
}

// FindTimeline lists posts for userID's home feed. With the following_timeline
// flag on for the user it is limited to followed authors plus the user.
func (s *PostService) FindTimeline(ctx context.Context, userID string, page Pagination) ([]*models.Post, error) {
	followingOnly := s.flags.Enabled(featureflags.FollowingTimeline, userID)
	return s.postRepo.ListTimeline(ctx, userID, followingOnly, page.Limit, page.Offset)
}

func (s *PostService) Update(ctx context.Context, id string, in UpdatePostInput) (*models.Post, error) {
	if in.Content == nil && in.Media == nil {
		return nil, models.NewValidationError("no valid fields to update")
	}

	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var columns []string
	if in.Content != nil {
		if err := validation.StringLength(*in.Content, 1, maxPostLen, "content"); err != nil {
			return nil, err
		}
		post.Content = *in.Content
		post.Hashtags = ExtractHashtags(post.Content)
		columns = append(columns, "content", "hashtags")
	}
	if in.Media != nil {
		if err := validateMedia(in.Media); err != nil {
			return nil, err
		}
		post.Media = in.Media
		columns = append(columns, "media")
	}

	if err := s.postRepo.Update(ctx, post, columns...); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, id)
}

// Delete removes the post together with its reactions and comments.
func (s *PostService) Delete(ctx context.Context, id string) error {
	return s.postRepo.Delete(ctx, id)
}

func (s *PostService) Like(ctx context.Context, postID, userID string) (*models.Post, error) {
	if err := s.requirePostAndUser(ctx, postID, userID); err != nil {
		return nil, err
	}
	added, err := s.postRepo.Like(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, models.NewValidationError("post already liked")
	}
	observability.LikesTotal.WithLabelValues("post", "like").Inc()
	return s.postRepo.GetByID(ctx, postID)
}

// Unlike is idempotent.
func (s *PostService) Unlike(ctx context.Context, postID, userID string) (*models.Post, error) {
	if err := s.requirePostAndUser(ctx, postID, userID); err != nil {
		return nil, err
	}
	removed, err := s.postRepo.Unlike(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if removed {
		observability.LikesTotal.WithLabelValues("post", "unlike").Inc()
	}
	return s.postRepo.GetByID(ctx, postID)
}

func (s *PostService) Retweet(ctx context.Context, postID, userID string) (*models.Post, error) {
	if err := s.requirePostAndUser(ctx, postID, userID); err != nil {
		return nil, err
	}
	added, err := s.postRepo.Retweet(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, models.NewValidationError("post already retweeted")
	}
	return s.postRepo.GetByID(ctx, postID)
}

// Unretweet is idempotent.
func (s *PostService) Unretweet(ctx context.Context, postID, userID string) (*models.Post, error) {
	if err := s.requirePostAndUser(ctx, postID, userID); err != nil {
		return nil, err
	}
	if _, err := s.postRepo.Unretweet(ctx, postID, userID); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, postID)
}

func (s *PostService) requirePostAndUser(ctx context.Context, postID, userID string) error {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return err
	}
	_, err := s.userRepo.GetByID(ctx, userID)
	return err
}
