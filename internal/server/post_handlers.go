package server

import (
	"context"

	"chirp/internal/models"
	"chirp/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Content string   `json:"content"`
	Media   []string `json:"media"`
}

type updatePostRequest struct {
	Content *string  `json:"content"`
	Media   []string `json:"media"`
}

// CreatePost handles POST /api/posts
// @Summary Publish a post
// @Description Hashtags are extracted from the content
// @Tags posts
// @Accept json
// @Produce json
// @Param request body createPostRequest true "Post"
// @Success 201 {object} models.Response{data=object{post=models.Post}}
// @Failure 400 {object} models.Response
// @Failure 401 {object} models.Response
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	var req createPostRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.Create(ctx, service.CreatePostInput{
		UserID:  userID,
		Content: req.Content,
		Media:   req.Media,
	})
	if err != nil {
		return respondError(c, err)
	}

	s.broadcastEvent(ctx, userID, EventPostCreated, map[string]any{"postId": post.ID})
	return models.RespondWithData(c, fiber.StatusCreated, "post created", fiber.Map{"post": post})
}

// GetTimeline handles GET /api/posts/timeline
// @Summary Home timeline
// @Tags posts
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param skip query int false "Items to skip"
// @Success 200 {object} models.Response{data=object{posts=[]models.Post}}
// @Failure 401 {object} models.Response
// @Router /posts/timeline [get]
func (s *Server) GetTimeline(c *fiber.Ctx) error {
	posts, err := s.postService.FindTimeline(c.UserContext(), currentUserID(c), parsePagination(c, 20))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", fiber.Map{"posts": posts})
}

// GetUserPosts handles GET /api/posts/user/:username
// @Summary Posts by a user
// @Tags posts
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} models.Response{data=object{posts=[]models.Post}}
// @Failure 404 {object} models.Response
// @Router /posts/user/{username} [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user, err := s.lookupUsername(ctx, c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}

	posts, err := s.postService.FindByUser(ctx, user.ID, parsePagination(c, 20))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", fiber.Map{"posts": posts})
}

// GetPostsByHashtag handles GET /api/posts/hashtag/:hashtag
// @Summary Posts by hashtag
// @Tags posts
// @Produce json
// @Param hashtag path string true "Tag, with or without #"
// @Success 200 {object} models.Response{data=object{posts=[]models.Post}}
// @Failure 400 {object} models.Response
// @Router /posts/hashtag/{hashtag} [get]
func (s *Server) GetPostsByHashtag(c *fiber.Ctx) error {
	posts, err := s.postService.FindByHashtag(c.UserContext(), c.Params("hashtag"), parsePagination(c, 20))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", fiber.Map{"posts": posts})
}

// GetPost handles GET /api/posts/:postId
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param postId path string true "Post ID"
// @Success 200 {object} models.Response{data=object{post=models.Post}}
// @Failure 404 {object} models.Response
// @Router /posts/{postId} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	post, err := s.postService.FindByID(c.UserContext(), postID)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", fiber.Map{"post": post})
}

// UpdatePost handles PUT /api/posts/:postId
// @Summary Edit own post
// @Tags posts
// @Accept json
// @Produce json
// @Param postId path string true "Post ID"
// @Param request body updatePostRequest true "Fields to change"
// @Success 200 {object} models.Response{data=object{post=models.Post}}
// @Failure 403 {object} models.Response
// @Router /posts/{postId} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	var req updatePostRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	if err := s.requirePostOwner(c, postID, "edit"); err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.Update(c.UserContext(), postID, service.UpdatePostInput{
		Content: req.Content,
		Media:   req.Media,
	})
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "post updated", fiber.Map{"post": post})
}

// DeletePost handles DELETE /api/posts/:postId
// @Summary Delete own post
// @Description Also removes the post's likes, retweets and comments
// @Tags posts
// @Produce json
// @Param postId path string true "Post ID"
// @Success 200 {object} models.Response
// @Failure 403 {object} models.Response
// @Failure 404 {object} models.Response
// @Router /posts/{postId} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	if err := s.requirePostOwner(c, postID, "delete"); err != nil {
		return respondError(c, err)
	}

	if err := s.postService.Delete(c.UserContext(), postID); err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "post deleted", nil)
}

// LikePost handles POST /api/posts/:postId/like
// @Summary Like a post
// @Tags posts
// @Produce json
// @Param postId path string true "Post ID"
// @Success 200 {object} models.Response{data=object{post=models.Post}}
// @Failure 400 {object} models.Response
// @Router /posts/{postId}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.reactToPost(c, s.postService.Like, "post liked", EventPostLiked)
}

// UnlikePost handles DELETE /api/posts/:postId/like
// @Summary Remove a like
// @Tags posts
// @Produce json
// @Param postId path string true "Post ID"
// @Success 200 {object} models.Response{data=object{post=models.Post}}
// @Router /posts/{postId}/like [delete]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	return s.reactToPost(c, s.postService.Unlike, "like removed", "")
}

// Retweet handles POST /api/posts/:postId/retweet
// @Summary Retweet a post
// @Tags posts
// @Produce json
// @Param postId path string true "Post ID"
// @Success 200 {object} models.Response{data=object{post=models.Post}}
// @Failure 400 {object} models.Response
// @Router /posts/{postId}/retweet [post]
func (s *Server) Retweet(c *fiber.Ctx) error {
	return s.reactToPost(c, s.postService.Retweet, "post retweeted", EventPostRetweeted)
}

// Unretweet handles DELETE /api/posts/:postId/retweet
// @Summary Undo a retweet
// @Tags posts
// @Produce json
// @Param postId path string true "Post ID"
// @Success 200 {object} models.Response{data=object{post=models.Post}}
// @Router /posts/{postId}/retweet [delete]
func (s *Server) Unretweet(c *fiber.Ctx) error {
	return s.reactToPost(c, s.postService.Unretweet, "retweet removed", "")
}

type postReaction func(ctx context.Context, postID, userID string) (*models.Post, error)

// reactToPost runs a like/retweet style operation and notifies the author
// when event is set.
func (s *Server) reactToPost(c *fiber.Ctx, react postReaction, message, event string) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	userID := currentUserID(c)

	post, err := react(ctx, postID, userID)
	if err != nil {
		return respondError(c, err)
	}

	if event != "" {
		s.notifyUser(ctx, post.UserID, userID, event, map[string]any{"postId": post.ID})
	}
	return models.RespondWithData(c, fiber.StatusOK, message, fiber.Map{"post": post})
}

// requirePostOwner fails with NOT_FOUND or FORBIDDEN unless the caller wrote the post.
func (s *Server) requirePostOwner(c *fiber.Ctx, postID, action string) error {
	post, err := s.postService.FindByID(c.UserContext(), postID)
	if err != nil {
		return err
	}
	if post.UserID != currentUserID(c) {
		return models.NewForbiddenError("you do not have permission to " + action + " this post")
	}
	return nil
}
