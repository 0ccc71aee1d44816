package service

import (
	"context"
	"strings"
	"testing"

	"chirp/internal/featureflags"
	"chirp/internal/models"
	"chirp/internal/repository"
	"chirp/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractHashtags(t *testing.T) {
	tests := []struct {
		content string
		want    []string
	}{
		{"#A #a #B", []string{"a", "b"}},
		{"no tags here", []string{}},
		{"mixed #Go_Lang and #go_lang, #42!", []string{"go_lang", "42"}},
		{"# alone", []string{}},
		{"#one#two", []string{"one", "two"}},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractHashtags(tt.content))
		})
	}
}

func TestPostServiceCreate_Validation(t *testing.T) {
	svc := NewPostService(noopPostRepo(), noopUserRepo(), nil)

	tests := []struct {
		name string
		in   CreatePostInput
	}{
		{"empty content", CreatePostInput{UserID: "u1"}},
		{"too long", CreatePostInput{UserID: "u1", Content: strings.Repeat("x", 281)}},
		{"blank media item", CreatePostInput{UserID: "u1", Content: "hi", Media: []string{"a.png", " "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			assertValidationError(t, err)
		})
	}
}

func TestPostServiceCreate_ExactlyMaxLength(t *testing.T) {
	var stored *models.Post
	posts := noopPostRepo()
	posts.createFn = func(_ context.Context, p *models.Post) error {
		stored = p
		return nil
	}
	svc := NewPostService(posts, noopUserRepo(), nil)

	content := strings.Repeat("x", 276) + " #Go"
	post, err := svc.Create(context.Background(), CreatePostInput{UserID: "u1", Content: content})
	require.NoError(t, err)
	assert.Same(t, stored, post)
	assert.Equal(t, []string{"go"}, post.Hashtags)
	assert.Equal(t, []string{}, post.Media)
}

func TestPostServiceCreate_UnknownAuthor(t *testing.T) {
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id string) (*models.User, error) {
		return nil, models.NewNotFoundError("User", id)
	}
	_, err := NewPostService(noopPostRepo(), users, nil).Create(context.Background(), CreatePostInput{UserID: "ghost", Content: "hi"})
	assertAppError(t, err, models.CodeNotFound)
}

func TestPostServiceFindByHashtag_Normalizes(t *testing.T) {
	posts := noopPostRepo()
	var gotTag string
	posts.listByHashtagFn = func(_ context.Context, tag string, _, _ int) ([]*models.Post, error) {
		gotTag = tag
		return nil, nil
	}
	svc := NewPostService(posts, noopUserRepo(), nil)

	_, err := svc.FindByHashtag(context.Background(), " #GoLang ", Pagination{})
	require.NoError(t, err)
	assert.Equal(t, "golang", gotTag)

	_, err = svc.FindByHashtag(context.Background(), "#", Pagination{})
	assertValidationError(t, err)
}

func TestPostServiceFindTimeline_FollowsFlag(t *testing.T) {
	tests := []struct {
		flags string
		want  bool
	}{
		{"", false},
		{"following_timeline=on", true},
		{"following_timeline=off", false},
	}
	for _, tt := range tests {
		t.Run(tt.flags, func(t *testing.T) {
			posts := noopPostRepo()
			var got bool
			posts.listTimelineFn = func(_ context.Context, _ string, followingOnly bool, _, _ int) ([]*models.Post, error) {
				got = followingOnly
				return nil, nil
			}
			svc := NewPostService(posts, noopUserRepo(), featureflags.NewManager(tt.flags))
			_, err := svc.FindTimeline(context.Background(), "u1", Pagination{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPostServiceUpdate_NoFields(t *testing.T) {
	_, err := NewPostService(noopPostRepo(), noopUserRepo(), nil).Update(context.Background(), "p1", UpdatePostInput{})
	assertValidationError(t, err)
}

func TestPostServiceUpdate_ContentRewritesHashtags(t *testing.T) {
	posts := noopPostRepo()
	var columns []string
	var updated *models.Post
	posts.updateFn = func(_ context.Context, p *models.Post, cols ...string) error {
		updated, columns = p, cols
		return nil
	}
	svc := NewPostService(posts, noopUserRepo(), nil)

	_, err := svc.Update(context.Background(), "p1", UpdatePostInput{Content: strPtr("now #Fresh")})
	require.NoError(t, err)
	assert.Equal(t, []string{"content", "hashtags"}, columns)
	assert.Equal(t, []string{"fresh"}, updated.Hashtags)
}

func TestPostService_Integration(t *testing.T) {
	db := testutil.NewTestDB(t)
	users := repository.NewUserRepository(db, nil)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db)
	bob := testutil.CreateUser(t, db)
	carol := testutil.CreateUser(t, db)

	svc := NewPostService(repository.NewPostRepository(db), users, nil)

	t.Run("like twice fails and likes stay a set", func(t *testing.T) {
		post, err := svc.Create(ctx, CreatePostInput{UserID: alice.ID, Content: "hello #World"})
		require.NoError(t, err)
		assert.Equal(t, alice.Username, post.Username)

		liked, err := svc.Like(ctx, post.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{bob.ID}, liked.Likes)

		_, err = svc.Like(ctx, post.ID, bob.ID)
		assertValidationError(t, err)
		assert.Contains(t, err.Error(), "post already liked")

		unliked, err := svc.Unlike(ctx, post.ID, bob.ID)
		require.NoError(t, err)
		assert.Empty(t, unliked.Likes)
		_, err = svc.Unlike(ctx, post.ID, bob.ID)
		require.NoError(t, err)
	})

	t.Run("retweet twice fails", func(t *testing.T) {
		post, err := svc.Create(ctx, CreatePostInput{UserID: alice.ID, Content: "share me"})
		require.NoError(t, err)

		_, err = svc.Retweet(ctx, post.ID, carol.ID)
		require.NoError(t, err)
		_, err = svc.Retweet(ctx, post.ID, carol.ID)
		assertValidationError(t, err)
	})

	t.Run("like unknown post", func(t *testing.T) {
		_, err := svc.Like(ctx, "00000000-0000-0000-0000-000000000000", bob.ID)
		assertAppError(t, err, models.CodeNotFound)
	})

	t.Run("following timeline", func(t *testing.T) {
		_, err := users.Follow(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		carolPost, err := svc.Create(ctx, CreatePostInput{UserID: carol.ID, Content: "not followed"})
		require.NoError(t, err)

		following := NewPostService(repository.NewPostRepository(db), users, featureflags.NewManager("following_timeline=on"))
		feed, err := following.FindTimeline(ctx, bob.ID, Pagination{})
		require.NoError(t, err)
		require.NotEmpty(t, feed)
		for _, p := range feed {
			assert.Contains(t, []string{alice.ID, bob.ID}, p.UserID)
		}

		all, err := svc.FindTimeline(ctx, bob.ID, Pagination{})
		require.NoError(t, err)
		ids := make([]string, 0, len(all))
		for _, p := range all {
			ids = append(ids, p.ID)
		}
		assert.Contains(t, ids, carolPost.ID)
	})

	t.Run("hashtag search", func(t *testing.T) {
		found, err := svc.FindByHashtag(ctx, "#WORLD", Pagination{})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "hello #World", found[0].Content)
	})
}
