package server

import (
	"context"

	"chirp/internal/models"
	"chirp/internal/service"

	"github.com/gofiber/fiber/v2"
)

type updateProfileRequest struct {
	Username     *string `json:"username"`
	Email        *string `json:"email"`
	Bio          *string `json:"bio"`
	ProfileImage *string `json:"profileImage"`
}

// ListUsers handles GET /api/users
// @Summary List users
// @Tags users
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param skip query int false "Items to skip"
// @Success 200 {object} models.Response{data=object{users=[]models.User}}
// @Router /users [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	users, err := s.userService.List(c.UserContext(), parsePagination(c, 20))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", fiber.Map{"users": users})
}

// GetProfile handles GET /api/users/:username
// @Summary User profile
// @Description Public profile; isFollowing is set when a viewer is logged in
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} models.Response{data=object{user=models.Profile}}
// @Failure 404 {object} models.Response
// @Router /users/{username} [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	profile, err := s.userService.GetProfile(c.UserContext(), c.Params("username"), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", fiber.Map{"user": profile})
}

// UpdateProfile handles PUT /api/users/profile
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Param request body updateProfileRequest true "Fields to change"
// @Success 200 {object} models.Response{data=object{user=models.User}}
// @Failure 400 {object} models.Response
// @Failure 409 {object} models.Response
// @Router /users/profile [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Update(c.UserContext(), currentUserID(c), service.UpdateUserInput{
		Username:     req.Username,
		Email:        req.Email,
		Bio:          req.Bio,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "profile updated", fiber.Map{"user": user})
}

// FollowUser handles POST /api/users/:username/follow
// @Summary Follow a user
// @Tags users
// @Produce json
// @Param username path string true "Username to follow"
// @Success 200 {object} models.Response
// @Failure 400 {object} models.Response
// @Failure 404 {object} models.Response
// @Router /users/{username}/follow [post]
func (s *Server) FollowUser(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	target, err := s.lookupUsername(ctx, c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	if err := s.userService.Follow(ctx, userID, target.ID); err != nil {
		return respondError(c, err)
	}

	s.notifyUser(ctx, target.ID, userID, EventUserFollowed, fiber.Map{"followerId": userID})
	return models.RespondWithData(c, fiber.StatusOK, "you are now following "+target.Username, nil)
}

// UnfollowUser handles DELETE /api/users/:username/follow
// @Summary Unfollow a user
// @Tags users
// @Produce json
// @Param username path string true "Username to unfollow"
// @Success 200 {object} models.Response
// @Failure 400 {object} models.Response
// @Failure 404 {object} models.Response
// @Router /users/{username}/follow [delete]
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	ctx := c.UserContext()

	target, err := s.lookupUsername(ctx, c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	if err := s.userService.Unfollow(ctx, currentUserID(c), target.ID); err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "you unfollowed "+target.Username, nil)
}

// lookupUsername returns the user or a NOT_FOUND error.
func (s *Server) lookupUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userService.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	return user, nil
}
