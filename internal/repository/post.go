package repository

import (
	"context"
	"slices"

	"chirp/internal/models"
	"chirp/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Post, error)
	ListByHashtag(ctx context.Context, tag string, limit, offset int) ([]*models.Post, error)
	ListTimeline(ctx context.Context, viewerID string, followingOnly bool, limit, offset int) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post, columns ...string) error
	Delete(ctx context.Context, id string) error
	Like(ctx context.Context, postID, userID string) (bool, error)
	Unlike(ctx context.Context, postID, userID string) (bool, error)
	Retweet(ctx context.Context, postID, userID string) (bool, error)
	Unretweet(ctx context.Context, postID, userID string) (bool, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create stores the post and its hashtag index rows together.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("insert", "posts")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		return writeHashtags(tx, post.ID, post.Hashtags)
	})
	if err != nil {
		return models.NewDatabaseError(err)
	}
	post.Likes = []string{}
	post.Retweets = []string{}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	defer observability.TrackQuery("select", "posts")()
	var post models.Post
	if err := r.withDetails(r.db.WithContext(ctx)).Where("posts.id = ?", id).First(&post).Error; err != nil {
		return nil, wrapDBError(err, "Post", id)
	}
	if err := r.loadReactions(ctx, []*models.Post{&post}); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Post, error) {
	return r.list(ctx, limit, offset, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.user_id = ?", userID)
	})
}

// ListByHashtag matches the normalized tag exactly through post_hashtags.
func (r *postRepository) ListByHashtag(ctx context.Context, tag string, limit, offset int) ([]*models.Post, error) {
	return r.list(ctx, limit, offset, func(db *gorm.DB) *gorm.DB {
		return db.Joins("JOIN post_hashtags ON post_hashtags.post_id = posts.id").
			Where("post_hashtags.tag = ?", tag)
	})
}

// ListTimeline returns every post, or with followingOnly just the viewer's own
// posts and those of users the viewer follows.
func (r *postRepository) ListTimeline(ctx context.Context, viewerID string, followingOnly bool, limit, offset int) ([]*models.Post, error) {
	return r.list(ctx, limit, offset, func(db *gorm.DB) *gorm.DB {
		if !followingOnly {
			return db
		}
		followees := r.db.WithContext(ctx).Model(&models.Follow{}).
			Select("followee_id").
			Where("follower_id = ?", viewerID)
		return db.Where("posts.user_id = ? OR posts.user_id IN (?)", viewerID, followees)
	})
}

func (r *postRepository) list(ctx context.Context, limit, offset int, scope func(*gorm.DB) *gorm.DB) ([]*models.Post, error) {
	defer observability.TrackQuery("select", "posts")()
	limit, offset = clampPage(limit, offset, 20)

	var posts []*models.Post
	if err := scope(r.withDetails(r.db.WithContext(ctx))).
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, models.NewDatabaseError(err)
	}
	if err := r.loadReactions(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// withDetails selects the author username and comment count alongside the post.
func (r *postRepository) withDetails(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Post{}).
		Select("posts.*, users.username AS username, " +
			"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comments_count").
		Joins("LEFT JOIN users ON users.id = posts.user_id")
}

type reactionRow struct {
	PostID string
	UserID string
}

// loadReactions fills Likes and Retweets for the given posts.
func (r *postRepository) loadReactions(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, 0, len(posts))
	byID := make(map[string]*models.Post, len(posts))
	for _, p := range posts {
		p.Likes = []string{}
		p.Retweets = []string{}
		if p.Hashtags == nil {
			p.Hashtags = []string{}
		}
		if p.Media == nil {
			p.Media = []string{}
		}
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	var likes []reactionRow
	if err := r.db.WithContext(ctx).Model(&models.PostLike{}).
		Select("post_id, user_id").
		Where("post_id IN ?", ids).
		Order("created_at ASC").
		Scan(&likes).Error; err != nil {
		return models.NewDatabaseError(err)
	}
	for _, l := range likes {
		byID[l.PostID].Likes = append(byID[l.PostID].Likes, l.UserID)
	}

	var retweets []reactionRow
	if err := r.db.WithContext(ctx).Model(&models.PostRetweet{}).
		Select("post_id, user_id").
		Where("post_id IN ?", ids).
		Order("created_at ASC").
		Scan(&retweets).Error; err != nil {
		return models.NewDatabaseError(err)
	}
	for _, rt := range retweets {
		byID[rt.PostID].Retweets = append(byID[rt.PostID].Retweets, rt.UserID)
	}
	return nil
}

// Update writes the named columns of post. When hashtags are among them the
// post_hashtags index is rewritten in the same transaction.
func (r *postRepository) Update(ctx context.Context, post *models.Post, columns ...string) error {
	defer observability.TrackQuery("update", "posts")()
	if len(columns) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{ID: post.ID}).Select(columns).Updates(post)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", post.ID)
		}
		if !slices.Contains(columns, "hashtags") {
			return nil
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostHashtag{}).Error; err != nil {
			return err
		}
		return writeHashtags(tx, post.ID, post.Hashtags)
	})
	return wrapDBError(err, "Post", post.ID)
}

// Delete removes the post with its reactions, hashtag rows, comments and the
// likes on those comments.
func (r *postRepository) Delete(ctx context.Context, id string) error {
	defer observability.TrackQuery("delete", "posts")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", id)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		for _, dependent := range []any{&models.PostLike{}, &models.PostRetweet{}, &models.PostHashtag{}} {
			if err := tx.Where("post_id = ?", id).Delete(dependent).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", id)
		}
		return nil
	})
	return wrapDBError(err, "Post", id)
}

func (r *postRepository) Like(ctx context.Context, postID, userID string) (bool, error) {
	return r.addReaction(ctx, &models.PostLike{PostID: postID, UserID: userID})
}

func (r *postRepository) Unlike(ctx context.Context, postID, userID string) (bool, error) {
	return r.removeReaction(ctx, &models.PostLike{}, postID, userID)
}

func (r *postRepository) Retweet(ctx context.Context, postID, userID string) (bool, error) {
	return r.addReaction(ctx, &models.PostRetweet{PostID: postID, UserID: userID})
}

func (r *postRepository) Unretweet(ctx context.Context, postID, userID string) (bool, error) {
	return r.removeReaction(ctx, &models.PostRetweet{}, postID, userID)
}

// addReaction inserts a (post, user) row; false means it was already there.
func (r *postRepository) addReaction(ctx context.Context, row any) (bool, error) {
	defer observability.TrackQuery("insert", "post_reactions")()
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return false, models.NewDatabaseError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) removeReaction(ctx context.Context, model any, postID, userID string) (bool, error) {
	defer observability.TrackQuery("delete", "post_reactions")()
	res := r.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).Delete(model)
	if res.Error != nil {
		return false, models.NewDatabaseError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func writeHashtags(tx *gorm.DB, postID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	rows := make([]models.PostHashtag, 0, len(tags))
	for _, tag := range tags {
		rows = append(rows, models.PostHashtag{PostID: postID, Tag: tag})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}
