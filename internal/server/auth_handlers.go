package server

import (
	"chirp/internal/middleware"
	"chirp/internal/models"
	"chirp/internal/service"
	"chirp/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Bio          string `json:"bio"`
	ProfileImage string `json:"profileImage"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register
// @Summary User registration
// @Description Create an account and start a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body registerRequest true "Registration request"
// @Success 201 {object} models.Response{data=object{user=models.User,token=string}}
// @Failure 400 {object} models.Response
// @Failure 409 {object} models.Response
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Create(c.UserContext(), service.CreateUserInput{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		Bio:          req.Bio,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		return respondError(c, err)
	}

	if err := s.startSession(c, user); err != nil {
		return respondError(c, err)
	}
	token, err := s.generateToken(user.ID)
	if err != nil {
		return respondError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "user registered", "user_id", user.ID, "username", user.Username)
	return models.RespondWithData(c, fiber.StatusCreated, "user registered", fiber.Map{
		"user":  user,
		"token": token,
	})
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate with username and password and start a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Login credentials"
// @Success 200 {object} models.Response{data=object{user=models.User,token=string}}
// @Failure 400 {object} models.Response
// @Failure 401 {object} models.Response
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	if err := validation.Required([]string{"username", "password"}, map[string]any{
		"username": req.Username,
		"password": req.Password,
	}); err != nil {
		return respondError(c, err)
	}

	user, err := s.userService.Authenticate(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	if err := s.startSession(c, user); err != nil {
		return respondError(c, err)
	}
	token, err := s.generateToken(user.ID)
	if err != nil {
		return respondError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "user logged in", "user_id", user.ID)
	return models.RespondWithData(c, fiber.StatusOK, "login successful", fiber.Map{
		"user":  user,
		"token": token,
	})
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Destroy the session and revoke the presented bearer token
// @Tags auth
// @Produce json
// @Success 200 {object} models.Response
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if token, ok := bearerToken(c); ok {
		s.revokeToken(c, token)
	}

	sess, err := s.sessions.Get(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := sess.Destroy(); err != nil {
		return respondError(c, err)
	}
	c.ClearCookie(sessionCookieName)

	return models.RespondWithData(c, fiber.StatusOK, "logged out", nil)
}

// Verify handles GET /api/auth/verify
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} models.Response{data=object{user=models.User}}
// @Failure 401 {object} models.Response
// @Router /auth/verify [get]
func (s *Server) Verify(c *fiber.Ctx) error {
	user, err := s.userService.FindByID(c.UserContext(), currentUserID(c))
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return respondError(c, models.NewUnauthorizedError("session user no longer exists"))
		}
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", fiber.Map{"user": user})
}

// IssueToken handles POST /api/auth/token
// @Summary Issue a bearer token
// @Description Returns a JWT for API clients that cannot keep the session cookie
// @Tags auth
// @Produce json
// @Success 200 {object} models.Response{data=object{token=string}}
// @Failure 401 {object} models.Response
// @Router /auth/token [post]
func (s *Server) IssueToken(c *fiber.Ctx) error {
	token, err := s.generateToken(currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", fiber.Map{"token": token})
}
