package repository

import (
	"context"
	"time"

	"chirp/internal/models"
	"chirp/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string, limit, offset int) ([]*models.Comment, error)
	ListReplies(ctx context.Context, parentID string, limit, offset int) ([]*models.Comment, error)
	UpdateContent(ctx context.Context, id, content string) error
	DeleteWithReplies(ctx context.Context, id string) error
	Like(ctx context.Context, commentID, userID string) (bool, error)
	Unlike(ctx context.Context, commentID, userID string) (bool, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("insert", "comments")()
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return models.NewDatabaseError(err)
	}
	comment.Likes = []string{}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	defer observability.TrackQuery("select", "comments")()
	var comment models.Comment
	if err := r.withAuthor(r.db.WithContext(ctx)).Where("comments.id = ?", id).First(&comment).Error; err != nil {
		return nil, wrapDBError(err, "Comment", id)
	}
	if err := r.loadLikes(ctx, []*models.Comment{&comment}); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListByPost returns top-level comments of the post, newest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID string, limit, offset int) ([]*models.Comment, error) {
	return r.list(ctx, limit, offset, func(db *gorm.DB) *gorm.DB {
		return db.Where("comments.post_id = ? AND comments.parent_comment_id IS NULL", postID)
	})
}

// ListReplies returns direct replies of a comment, newest first.
func (r *commentRepository) ListReplies(ctx context.Context, parentID string, limit, offset int) ([]*models.Comment, error) {
	return r.list(ctx, limit, offset, func(db *gorm.DB) *gorm.DB {
		return db.Where("comments.parent_comment_id = ?", parentID)
	})
}

func (r *commentRepository) list(ctx context.Context, limit, offset int, scope func(*gorm.DB) *gorm.DB) ([]*models.Comment, error) {
	defer observability.TrackQuery("select", "comments")()
	limit, offset = clampPage(limit, offset, 50)

	var comments []*models.Comment
	if err := scope(r.withAuthor(r.db.WithContext(ctx))).
		Order("comments.created_at DESC").
		Order("comments.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error; err != nil {
		return nil, models.NewDatabaseError(err)
	}
	if err := r.loadLikes(ctx, comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *commentRepository) withAuthor(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Comment{}).
		Select("comments.*, users.username AS username, users.profile_image AS profile_image").
		Joins("LEFT JOIN users ON users.id = comments.user_id")
}

func (r *commentRepository) loadLikes(ctx context.Context, comments []*models.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	ids := make([]string, 0, len(comments))
	byID := make(map[string]*models.Comment, len(comments))
	for _, c := range comments {
		c.Likes = []string{}
		ids = append(ids, c.ID)
		byID[c.ID] = c
	}

	var likes []models.CommentLike
	if err := r.db.WithContext(ctx).
		Where("comment_id IN ?", ids).
		Order("created_at ASC").
		Find(&likes).Error; err != nil {
		return models.NewDatabaseError(err)
	}
	for _, l := range likes {
		byID[l.CommentID].Likes = append(byID[l.CommentID].Likes, l.UserID)
	}
	return nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, id, content string) error {
	defer observability.TrackQuery("update", "comments")()
	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).
		Updates(map[string]any{"content": content, "updated_at": time.Now()})
	if res.Error != nil {
		return models.NewDatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

// DeleteWithReplies removes the comment and its direct replies together with
// their likes. Replies to those replies are left in place.
func (r *commentRepository) DeleteWithReplies(ctx context.Context, id string) error {
	defer observability.TrackQuery("delete", "comments")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var replyIDs []string
		if err := tx.Model(&models.Comment{}).Where("parent_comment_id = ?", id).Pluck("id", &replyIDs).Error; err != nil {
			return err
		}
		doomed := append(replyIDs, id)

		if err := tx.Where("comment_id IN ?", doomed).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		if len(replyIDs) > 0 {
			if err := tx.Where("id IN ?", replyIDs).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", id).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Comment", id)
		}
		return nil
	})
	return wrapDBError(err, "Comment", id)
}

func (r *commentRepository) Like(ctx context.Context, commentID, userID string) (bool, error) {
	defer observability.TrackQuery("insert", "comment_likes")()
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.CommentLike{CommentID: commentID, UserID: userID})
	if res.Error != nil {
		return false, models.NewDatabaseError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *commentRepository) Unlike(ctx context.Context, commentID, userID string) (bool, error) {
	defer observability.TrackQuery("delete", "comment_likes")()
	res := r.db.WithContext(ctx).Where("comment_id = ? AND user_id = ?", commentID, userID).Delete(&models.CommentLike{})
	if res.Error != nil {
		return false, models.NewDatabaseError(res.Error)
	}
	return res.RowsAffected > 0, nil
}
