package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"chirp/internal/models"
	"chirp/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByID(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db)

	tests := []struct {
		name     string
		id       string
		wantCode string
	}{
		{name: "Success", id: alice.ID},
		{name: "Not Found", id: "00000000-0000-0000-0000-000000000000", wantCode: models.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := repo.GetByID(ctx, tt.id)
			if tt.wantCode != "" {
				assert.True(t, models.IsCode(err, tt.wantCode))
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, alice.Username, user.Username)
			assert.Equal(t, []string{}, user.Followers)
			assert.Equal(t, []string{}, user.Following)
		})
	}
}

func TestUserRepository_GetByUsernameAndEmail(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db)

	byName, err := repo.GetByUsername(ctx, alice.Username)
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, alice.ID, byName.ID)
	assert.NotEmpty(t, byName.Password, "credential lookups must load the hash")

	byEmail, err := repo.GetByEmail(ctx, alice.Email)
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, alice.ID, byEmail.ID)

	ghost, err := repo.GetByUsername(ctx, "ghost")
	assert.NoError(t, err) // Should return nil, nil per implementation
	assert.Nil(t, ghost)
}

func TestUserRepository_Create_Duplicate(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db)

	dup := &models.User{Username: alice.Username, Email: "other@example.com", Password: "x"}
	err := repo.Create(ctx, dup)
	assert.True(t, models.IsCode(err, models.CodeDuplicate), "got %v", err)
}

func TestUserRepository_Update_KeepsPassword(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db)

	require.NoError(t, repo.Update(ctx, alice.ID, map[string]any{"bio": "new bio"}))

	stored, err := repo.GetByUsername(ctx, alice.Username)
	require.NoError(t, err)
	assert.Equal(t, "new bio", stored.Bio)
	assert.Equal(t, alice.Password, stored.Password)

	err = repo.Update(ctx, "00000000-0000-0000-0000-000000000000", map[string]any{"bio": "x"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserRepository_FollowGraph(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	a := testutil.CreateUser(t, db)
	b := testutil.CreateUser(t, db)

	added, err := repo.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, added, "second follow is a no-op")

	following, err := repo.IsFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, following)

	reverse, err := repo.IsFollowing(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, reverse)

	gotA, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	gotB, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, gotA.Following)
	assert.Equal(t, []string{a.ID}, gotB.Followers)

	removed, err := repo.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	gotB, err = repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, gotB.Followers)
}

func TestUserRepository_GetByID_CachesAndInvalidates(t *testing.T) {
	db := testutil.NewTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := NewUserRepository(db, rdb)
	ctx := context.Background()

	a := testutil.CreateUser(t, db)
	b := testutil.CreateUser(t, db)

	_, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists("user:"+a.ID))

	// A write behind the repository's back is masked by the cached copy.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", a.ID).Update("bio", "stale").Error)
	cached, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "stale", cached.Bio)

	require.NoError(t, repo.Update(ctx, a.ID, map[string]any{"bio": "fresh"}))
	assert.False(t, mr.Exists("user:"+a.ID))
	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Bio)

	_, err = repo.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists("user:"+a.ID))
	got, err = repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, got.Following)
}

func TestUserRepository_Delete_RemovesEdgesOnly(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	a := testutil.CreateUser(t, db)
	b := testutil.CreateUser(t, db)
	testutil.CreatePost(t, db, a.ID, "still here")

	_, err := repo.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = repo.Follow(ctx, b.ID, a.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, a.ID))

	var edges int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&edges).Error)
	assert.Zero(t, edges)

	var posts int64
	require.NoError(t, db.Model(&models.Post{}).Where("user_id = ?", a.ID).Count(&posts).Error)
	assert.Equal(t, int64(1), posts)

	gotB, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, gotB.Followers)
	assert.Empty(t, gotB.Following)

	err = repo.Delete(ctx, a.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserRepository_List_NewestFirst(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	first := testutil.CreateUser(t, db)
	second := testutil.CreateUser(t, db)

	users, err := repo.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, second.ID, users[0].ID)
	assert.Equal(t, first.ID, users[1].ID)

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
}

func TestUserRepository_GetByUsername_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE username = $1`)).
		WillReturnError(errors.New("connection timeout"))

	user, err := repo.GetByUsername(context.Background(), "alice")
	assert.Nil(t, user)
	assert.True(t, models.IsCode(err, models.CodeDatabase))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_PostgresUniqueViolation(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.User{Username: "alice", Email: "a@example.com", Password: "x"})
	assert.True(t, models.IsCode(err, models.CodeDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueConstraintError(t *testing.T) {
	assert.False(t, isUniqueConstraintError(nil))
	assert.True(t, isUniqueConstraintError(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueConstraintError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueConstraintError(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isUniqueConstraintError(errors.New("UNIQUE constraint failed: users.email")))
	assert.False(t, isUniqueConstraintError(errors.New("connection refused")))
}
