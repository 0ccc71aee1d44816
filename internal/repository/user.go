// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"time"

	"chirp/internal/cache"
	"chirp/internal/models"
	"chirp/internal/observability"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines persistence operations for users and the follow graph.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Follow(ctx context.Context, followerID, followeeID string) (bool, error)
	Unfollow(ctx context.Context, followerID, followeeID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
}

type userRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewUserRepository returns a new UserRepository implementation.
// rdb may be nil, which disables the profile cache.
func NewUserRepository(db *gorm.DB, rdb *redis.Client) UserRepository {
	return &userRepository{db: db, rdb: rdb}
}

// GetByID returns the user with follower and following ids. Results are cached
// under user:<id> until the next write touching that user.
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, r.rdb, cache.UserKey(id), &user, cache.UserTTL, func() error {
		defer observability.TrackQuery("select", "users")()
		if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
			return wrapDBError(err, "User", id)
		}
		return r.loadEdges(ctx, []*models.User{&user})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, "username", username)
}

// getBy returns nil, nil when no row matches.
func (r *userRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	defer observability.TrackQuery("select", "users")()
	var user models.User
	if err := r.db.WithContext(ctx).Where(column+" = ?", value).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewDatabaseError(err)
	}
	if err := r.loadEdges(ctx, []*models.User{&user}); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("insert", "users")()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewDuplicateError("user already exists")
		}
		return models.NewDatabaseError(err)
	}
	user.Followers = []string{}
	user.Following = []string{}
	return nil
}

// Update writes only the given columns so a partially loaded user can never
// clobber the password hash.
func (r *userRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	defer observability.TrackQuery("update", "users")()
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return models.NewDuplicateError("username or email already taken")
		}
		return models.NewDatabaseError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, r.rdb, id)
	return nil
}

// Delete removes the user and every follow edge touching them. Posts and
// comments written by the user are kept.
func (r *userRepository) Delete(ctx context.Context, id string) error {
	defer observability.TrackQuery("delete", "users")()
	var neighbours []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var following, followers []string
		if err := tx.Model(&models.Follow{}).Where("follower_id = ?", id).Pluck("followee_id", &following).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Follow{}).Where("followee_id = ?", id).Pluck("follower_id", &followers).Error; err != nil {
			return err
		}
		neighbours = append(following, followers...)

		if err := tx.Where("follower_id = ? OR followee_id = ?", id, id).Delete(&models.Follow{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", id)
		}
		return nil
	})
	if err != nil {
		return wrapDBError(err, "User", id)
	}
	cache.InvalidateUser(ctx, r.rdb, append(neighbours, id)...)
	return nil
}

// List returns users newest first.
func (r *userRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	defer observability.TrackQuery("select", "users")()
	limit, offset = clampPage(limit, offset, 20)

	var users []*models.User
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error; err != nil {
		return nil, models.NewDatabaseError(err)
	}
	if err := r.loadEdges(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

// Follow inserts the edge follower -> followee and touches both users. It
// reports false when the edge already existed.
func (r *userRepository) Follow(ctx context.Context, followerID, followeeID string) (bool, error) {
	defer observability.TrackQuery("insert", "follows")()
	added := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Follow{FollowerID: followerID, FolloweeID: followeeID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		added = true
		return touchUsers(tx, followerID, followeeID)
	})
	if err != nil {
		return false, models.NewDatabaseError(err)
	}
	if added {
		cache.InvalidateUser(ctx, r.rdb, followerID, followeeID)
	}
	return added, nil
}

// Unfollow removes the edge. Removing a missing edge is not an error.
func (r *userRepository) Unfollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	defer observability.TrackQuery("delete", "follows")()
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND followee_id = ?", followerID, followeeID).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return touchUsers(tx, followerID, followeeID)
	})
	if err != nil {
		return false, models.NewDatabaseError(err)
	}
	if removed {
		cache.InvalidateUser(ctx, r.rdb, followerID, followeeID)
	}
	return removed, nil
}

func (r *userRepository) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error; err != nil {
		return false, models.NewDatabaseError(err)
	}
	return count > 0, nil
}

func touchUsers(tx *gorm.DB, ids ...string) error {
	return tx.Model(&models.User{}).Where("id IN ?", ids).Update("updated_at", time.Now()).Error
}

// loadEdges fills Followers and Following for every user with one query.
func (r *userRepository) loadEdges(ctx context.Context, users []*models.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]string, 0, len(users))
	byID := make(map[string]*models.User, len(users))
	for _, u := range users {
		u.Followers = []string{}
		u.Following = []string{}
		ids = append(ids, u.ID)
		byID[u.ID] = u
	}

	var edges []models.Follow
	if err := r.db.WithContext(ctx).
		Where("follower_id IN ? OR followee_id IN ?", ids, ids).
		Order("created_at ASC").
		Find(&edges).Error; err != nil {
		return models.NewDatabaseError(err)
	}

	for _, e := range edges {
		if u, ok := byID[e.FollowerID]; ok {
			u.Following = append(u.Following, e.FolloweeID)
		}
		if u, ok := byID[e.FolloweeID]; ok {
			u.Followers = append(u.Followers, e.FollowerID)
		}
	}
	return nil
}
