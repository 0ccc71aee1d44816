package server

import (
	"context"

	"chirp/internal/models"
	"chirp/internal/service"
	"chirp/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type createCommentRequest struct {
	PostID          string  `json:"postId"`
	Content         string  `json:"content"`
	ParentCommentID *string `json:"parentCommentId"`
}

type updateCommentRequest struct {
	Content *string `json:"content"`
}

// CreateComment handles POST /api/comments
// @Summary Comment on a post
// @Description Set parentCommentId to reply to another comment on the same post
// @Tags comments
// @Accept json
// @Produce json
// @Param request body createCommentRequest true "Comment"
// @Success 201 {object} models.Response{data=object{comment=models.Comment}}
// @Failure 400 {object} models.Response
// @Failure 404 {object} models.Response
// @Router /comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	var req createCommentRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	if err := validation.ObjectID(req.PostID, "post ID"); err != nil {
		return respondError(c, err)
	}
	if req.ParentCommentID != nil && *req.ParentCommentID == "" {
		req.ParentCommentID = nil
	}
	if req.ParentCommentID != nil {
		if err := validation.ObjectID(*req.ParentCommentID, "parent comment ID"); err != nil {
			return respondError(c, err)
		}
	}

	comment, err := s.commentService.Create(ctx, service.CreateCommentInput{
		PostID:          req.PostID,
		UserID:          userID,
		Content:         req.Content,
		ParentCommentID: req.ParentCommentID,
	})
	if err != nil {
		return respondError(c, err)
	}

	if post, err := s.postService.FindByID(ctx, comment.PostID); err == nil {
		s.notifyUser(ctx, post.UserID, userID, EventCommentCreated, map[string]any{
			"postId":    post.ID,
			"commentId": comment.ID,
		})
	}
	return models.RespondWithData(c, fiber.StatusCreated, "comment created", fiber.Map{"comment": comment})
}

// GetPostComments handles GET /api/comments/post/:postId
// @Summary Top-level comments of a post
// @Tags comments
// @Produce json
// @Param postId path string true "Post ID"
// @Param limit query int false "Page size (max 100)"
// @Param skip query int false "Items to skip"
// @Success 200 {object} models.Response{data=object{comments=[]models.Comment}}
// @Failure 404 {object} models.Response
// @Router /comments/post/{postId} [get]
func (s *Server) GetPostComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	comments, err := s.commentService.FindByPost(c.UserContext(), postID, parsePagination(c, 50))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", fiber.Map{"comments": comments})
}

// GetCommentReplies handles GET /api/comments/:commentId/replies
// @Summary Direct replies to a comment
// @Tags comments
// @Produce json
// @Param commentId path string true "Comment ID"
// @Success 200 {object} models.Response{data=object{replies=[]models.Comment}}
// @Failure 404 {object} models.Response
// @Router /comments/{commentId}/replies [get]
func (s *Server) GetCommentReplies(c *fiber.Ctx) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	replies, err := s.commentService.FindReplies(c.UserContext(), commentID, parsePagination(c, 50))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", fiber.Map{"replies": replies})
}

// UpdateComment handles PUT /api/comments/:commentId
// @Summary Edit own comment
// @Tags comments
// @Accept json
// @Produce json
// @Param commentId path string true "Comment ID"
// @Param request body updateCommentRequest true "New content"
// @Success 200 {object} models.Response{data=object{comment=models.Comment}}
// @Failure 403 {object} models.Response
// @Router /comments/{commentId} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	var req updateCommentRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	if err := s.requireCommentOwner(c, commentID, "edit"); err != nil {
		return respondError(c, err)
	}

	comment, err := s.commentService.Update(c.UserContext(), commentID, req.Content)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "comment updated", fiber.Map{"comment": comment})
}

// DeleteComment handles DELETE /api/comments/:commentId
// @Summary Delete own comment
// @Description Direct replies are deleted with it
// @Tags comments
// @Produce json
// @Param commentId path string true "Comment ID"
// @Success 200 {object} models.Response
// @Failure 403 {object} models.Response
// @Failure 404 {object} models.Response
// @Router /comments/{commentId} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	if err := s.requireCommentOwner(c, commentID, "delete"); err != nil {
		return respondError(c, err)
	}

	if err := s.commentService.Delete(c.UserContext(), commentID); err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "comment deleted", nil)
}

// LikeComment handles POST /api/comments/:commentId/like
// @Summary Like a comment
// @Tags comments
// @Produce json
// @Param commentId path string true "Comment ID"
// @Success 200 {object} models.Response{data=object{comment=models.Comment}}
// @Failure 400 {object} models.Response
// @Router /comments/{commentId}/like [post]
func (s *Server) LikeComment(c *fiber.Ctx) error {
	return s.reactToComment(c, s.commentService.Like, "comment liked", EventCommentLiked)
}

// UnlikeComment handles DELETE /api/comments/:commentId/like
// @Summary Remove a comment like
// @Tags comments
// @Produce json
// @Param commentId path string true "Comment ID"
// @Success 200 {object} models.Response{data=object{comment=models.Comment}}
// @Router /comments/{commentId}/like [delete]
func (s *Server) UnlikeComment(c *fiber.Ctx) error {
	return s.reactToComment(c, s.commentService.Unlike, "like removed", "")
}

type commentReaction func(ctx context.Context, commentID, userID string) (*models.Comment, error)

func (s *Server) reactToComment(c *fiber.Ctx, react commentReaction, message, event string) error {
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	userID := currentUserID(c)

	comment, err := react(ctx, commentID, userID)
	if err != nil {
		return respondError(c, err)
	}

	if event != "" {
		s.notifyUser(ctx, comment.UserID, userID, event, map[string]any{
			"postId":    comment.PostID,
			"commentId": comment.ID,
		})
	}
	return models.RespondWithData(c, fiber.StatusOK, message, fiber.Map{"comment": comment})
}

func (s *Server) requireCommentOwner(c *fiber.Ctx, commentID, action string) error {
	comment, err := s.commentService.FindByID(c.UserContext(), commentID)
	if err != nil {
		return err
	}
	if comment.UserID != currentUserID(c) {
		return models.NewForbiddenError("you do not have permission to " + action + " this comment")
	}
	return nil
}
