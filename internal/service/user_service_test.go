package service

import (
	"context"
	"errors"
	"testing"

	"chirp/internal/models"
	"chirp/internal/repository"
	"chirp/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestUserService(repo repository.UserRepository) *UserService {
	svc := NewUserService(repo)
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func TestUserServiceCreate_ValidationBeforeRepo(t *testing.T) {
	tests := []struct {
		name string
		in   CreateUserInput
	}{
		{"missing username", CreateUserInput{Email: "a@b.co", Password: "secret1"}},
		{"missing password", CreateUserInput{Username: "alice", Email: "a@b.co"}},
		{"bad email", CreateUserInput{Username: "alice", Email: "nope", Password: "secret1"}},
		{"short username", CreateUserInput{Username: "al", Email: "a@b.co", Password: "secret1"}},
		{"bad username chars", CreateUserInput{Username: "al ice", Email: "a@b.co", Password: "secret1"}},
		{"short password", CreateUserInput{Username: "alice", Email: "a@b.co", Password: "12345"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := noopUserRepo()
			_, err := newTestUserService(repo).Create(context.Background(), tt.in)
			assertValidationError(t, err)
			assert.Zero(t, repo.calls, "repository must not be touched")
		})
	}
}

func TestUserServiceCreate_Duplicates(t *testing.T) {
	in := CreateUserInput{Username: "alice", Email: "alice@example.com", Password: "secret1"}

	t.Run("username", func(t *testing.T) {
		repo := noopUserRepo()
		repo.getByUsernameFn = func(_ context.Context, _ string) (*models.User, error) {
			return &models.User{ID: "x"}, nil
		}
		_, err := newTestUserService(repo).Create(context.Background(), in)
		assertAppError(t, err, models.CodeDuplicate)
		assert.Contains(t, err.Error(), "username already taken")
	})

	t.Run("email", func(t *testing.T) {
		repo := noopUserRepo()
		repo.getByEmailFn = func(_ context.Context, _ string) (*models.User, error) {
			return &models.User{ID: "x"}, nil
		}
		_, err := newTestUserService(repo).Create(context.Background(), in)
		assertAppError(t, err, models.CodeDuplicate)
		assert.Contains(t, err.Error(), "email already registered")
	})
}

func TestUserServiceCreate_HashesPassword(t *testing.T) {
	repo := noopUserRepo()
	var stored *models.User
	repo.createFn = func(_ context.Context, u *models.User) error {
		stored = u
		return nil
	}

	user, err := newTestUserService(repo).Create(context.Background(), CreateUserInput{
		Username: "alice", Email: "alice@example.com", Password: "secret1",
	})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Same(t, stored, user)
	assert.NotEqual(t, "secret1", stored.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("secret1")))
}

func TestUserServiceFollow_Self(t *testing.T) {
	repo := noopUserRepo()
	repo.getByIDFn = func(_ context.Context, id string) (*models.User, error) {
		return nil, models.NewNotFoundError("User", id)
	}
	svc := newTestUserService(repo)

	err := svc.Follow(context.Background(), "u1", "u1")
	assertValidationError(t, err)
	assert.Contains(t, err.Error(), "you cannot follow yourself")

	err = svc.Unfollow(context.Background(), "u1", "u1")
	assertValidationError(t, err)
	assert.Zero(t, repo.calls)
}

func TestUserServiceFollow_MissingTarget(t *testing.T) {
	repo := noopUserRepo()
	repo.getByIDFn = func(_ context.Context, id string) (*models.User, error) {
		if id == "ghost" {
			return nil, models.NewNotFoundError("User", id)
		}
		return &models.User{ID: id}, nil
	}
	err := newTestUserService(repo).Follow(context.Background(), "u1", "ghost")
	assertAppError(t, err, models.CodeNotFound)
}

func TestUserServiceUpdate_NoFields(t *testing.T) {
	repo := noopUserRepo()
	_, err := newTestUserService(repo).Update(context.Background(), "u1", UpdateUserInput{})
	assertValidationError(t, err)
	assert.Zero(t, repo.calls)
}

func TestUserServiceUpdate_UsernameTakenByOther(t *testing.T) {
	repo := noopUserRepo()
	repo.getByUsernameFn = func(_ context.Context, _ string) (*models.User, error) {
		return &models.User{ID: "someone-else"}, nil
	}
	_, err := newTestUserService(repo).Update(context.Background(), "u1", UpdateUserInput{Username: strPtr("bob")})
	assertAppError(t, err, models.CodeDuplicate)
}

func TestUserServiceUpdate_OwnUsernameIsFine(t *testing.T) {
	repo := noopUserRepo()
	repo.getByUsernameFn = func(_ context.Context, _ string) (*models.User, error) {
		return &models.User{ID: "u1"}, nil
	}
	var got map[string]any
	repo.updateFn = func(_ context.Context, _ string, fields map[string]any) error {
		got = fields
		return nil
	}
	_, err := newTestUserService(repo).Update(context.Background(), "u1", UpdateUserInput{
		Username: strPtr("alice"),
		Bio:      strPtr("hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"username": "alice", "bio": "hi"}, got)
}

func TestUserServiceRepoErrorPropagates(t *testing.T) {
	repo := noopUserRepo()
	dbErr := models.NewDatabaseError(errors.New("connection reset"))
	repo.getByUsernameFn = func(_ context.Context, _ string) (*models.User, error) { return nil, dbErr }

	_, err := newTestUserService(repo).Create(context.Background(), CreateUserInput{
		Username: "alice", Email: "alice@example.com", Password: "secret1",
	})
	assert.ErrorIs(t, err, dbErr)
}

func TestUserService_Integration(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := newTestUserService(repository.NewUserRepository(db, nil))
	ctx := context.Background()

	alice, err := svc.Create(ctx, CreateUserInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	bob, err := svc.Create(ctx, CreateUserInput{Username: "bob", Email: "bob@example.com", Password: "secret2"})
	require.NoError(t, err)

	t.Run("authenticate", func(t *testing.T) {
		got, err := svc.Authenticate(ctx, "alice", "secret1")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)

		_, err = svc.Authenticate(ctx, "alice", "wrong-password")
		assertAppError(t, err, models.CodeUnauthorized)
		_, err = svc.Authenticate(ctx, "nobody", "secret1")
		assertAppError(t, err, models.CodeUnauthorized)
	})

	t.Run("follow twice fails", func(t *testing.T) {
		require.NoError(t, svc.Follow(ctx, alice.ID, bob.ID))
		err := svc.Follow(ctx, alice.ID, bob.ID)
		assertValidationError(t, err)
		assert.Contains(t, err.Error(), "already following this user")

		a, err := svc.FindByID(ctx, alice.ID)
		require.NoError(t, err)
		b, err := svc.FindByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{bob.ID}, a.Following)
		assert.Equal(t, []string{alice.ID}, b.Followers)

		profile, err := svc.GetProfile(ctx, "bob", alice.ID)
		require.NoError(t, err)
		assert.True(t, profile.IsFollowing)
	})

	t.Run("unfollow is idempotent", func(t *testing.T) {
		require.NoError(t, svc.Unfollow(ctx, alice.ID, bob.ID))
		require.NoError(t, svc.Unfollow(ctx, alice.ID, bob.ID))

		following, err := svc.IsFollowing(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, following)
	})

	t.Run("profile not found", func(t *testing.T) {
		_, err := svc.GetProfile(ctx, "ghost", "")
		assertAppError(t, err, models.CodeNotFound)
	})

	t.Run("list pages newest first", func(t *testing.T) {
		users, err := svc.List(ctx, Pagination{Limit: 10})
		require.NoError(t, err)
		require.Len(t, users, 2)

		users, err = svc.List(ctx, Pagination{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})

	t.Run("delete drops follow edges", func(t *testing.T) {
		require.NoError(t, svc.Follow(ctx, alice.ID, bob.ID))
		require.NoError(t, svc.Delete(ctx, alice.ID))

		_, err := svc.FindByID(ctx, alice.ID)
		assertAppError(t, err, models.CodeNotFound)
		b, err := svc.FindByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Empty(t, b.Followers)

		assertAppError(t, svc.Delete(ctx, alice.ID), models.CodeNotFound)
	})
}
