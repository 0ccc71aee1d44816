package service

import (
	"context"

	"chirp/internal/models"
	"chirp/internal/observability"
	"chirp/internal/repository"
	"chirp/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const maxBioLen = 500

type UserService struct {
	userRepo   repository.UserRepository
	bcryptCost int
}

type CreateUserInput struct {
	Username     string
	Email        string
	Password     string
	Bio          string
	ProfileImage string
}

// UpdateUserInput carries optional changes; nil fields are left untouched.
type UpdateUserInput struct {
	Username     *string
	Email        *string
	Bio          *string
	ProfileImage *string
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo, bcryptCost: bcrypt.DefaultCost}
}

// Create registers a user. All input checks run before the first repository call.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (user *models.User, err error) {
	ctx, end := startSpan(ctx, "UserService", "Create")
	defer end(&err)

	if err := validation.Required([]string{"username", "email", "password"}, map[string]any{
		"username": in.Username,
		"email":    in.Email,
		"password": in.Password,
	}); err != nil {
		return nil, err
	}
	if err := validation.Email(in.Email); err != nil {
		return nil, err
	}
	if err := validation.Username(in.Username); err != nil {
		return nil, err
	}
	if err := validation.Password(in.Password); err != nil {
		return nil, err
	}
	if err := validation.StringLength(in.Bio, 0, maxBioLen, "bio"); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewDuplicateError("username already taken")
	}
	existing, err = s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewDuplicateError("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user = &models.User{
		Username:     in.Username,
		Email:        in.Email,
		Password:     string(hash),
		Bio:          in.Bio,
		ProfileImage: in.ProfileImage,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// FindByUsername returns nil, nil when no user has that name.
func (s *UserService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.userRepo.GetByUsername(ctx, username)
}

// GetProfile returns the public profile for username. IsFollowing is only
// computed when viewerID is set.
func (s *UserService) GetProfile(ctx context.Context, username, viewerID string) (*models.Profile, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}

	profile := &models.Profile{User: user}
	if viewerID != "" && viewerID != user.ID {
		profile.IsFollowing, err = s.userRepo.IsFollowing(ctx, viewerID, user.ID)
		if err != nil {
			return nil, err
		}
	}
	return profile, nil
}

func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*models.User, error) {
	if in.Username == nil && in.Email == nil && in.Bio == nil && in.ProfileImage == nil {
		return nil, models.NewValidationError("no valid fields to update")
	}

	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	fields := make(map[string]any, 4)
	if in.Username != nil {
		if err := validation.Username(*in.Username); err != nil {
			return nil, err
		}
		other, err := s.userRepo.GetByUsername(ctx, *in.Username)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != id {
			return nil, models.NewDuplicateError("username already taken")
		}
		fields["username"] = *in.Username
	}
	if in.Email != nil {
		if err := validation.Email(*in.Email); err != nil {
			return nil, err
		}
		other, err := s.userRepo.GetByEmail(ctx, *in.Email)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != id {
			return nil, models.NewDuplicateError("email already registered")
		}
		fields["email"] = *in.Email
	}
	if in.Bio != nil {
		if err := validation.StringLength(*in.Bio, 0, maxBioLen, "bio"); err != nil {
			return nil, err
		}
		fields["bio"] = *in.Bio
	}
	if in.ProfileImage != nil {
		fields["profile_image"] = *in.ProfileImage
	}

	if err := s.userRepo.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, id)
}

// Follow makes userID a follower of targetID.
func (s *UserService) Follow(ctx context.Context, userID, targetID string) (err error) {
	ctx, end := startSpan(ctx, "UserService", "Follow")
	defer end(&err)

	if userID == targetID {
		return models.NewValidationError("you cannot follow yourself")
	}
	if err := s.requireUsers(ctx, userID, targetID); err != nil {
		return err
	}

	added, err := s.userRepo.Follow(ctx, userID, targetID)
	if err != nil {
		return err
	}
	if !added {
		return models.NewValidationError("already following this user")
	}
	observability.FollowsTotal.WithLabelValues("follow").Inc()
	return nil
}

// Unfollow removes the edge if present. A missing edge is not an error.
func (s *UserService) Unfollow(ctx context.Context, userID, targetID string) (err error) {
	ctx, end := startSpan(ctx, "UserService", "Unfollow")
	defer end(&err)

	if userID == targetID {
		return models.NewValidationError("you cannot unfollow yourself")
	}
	if err := s.requireUsers(ctx, userID, targetID); err != nil {
		return err
	}

	removed, err := s.userRepo.Unfollow(ctx, userID, targetID)
	if err != nil {
		return err
	}
	if removed {
		observability.FollowsTotal.WithLabelValues("unfollow").Inc()
	}
	return nil
}

func (s *UserService) IsFollowing(ctx context.Context, userID, targetID string) (bool, error) {
	return s.userRepo.IsFollowing(ctx, userID, targetID)
}

func (s *UserService) List(ctx context.Context, page Pagination) ([]*models.User, error) {
	return s.userRepo.List(ctx, page.Limit, page.Offset)
}

// Delete removes the user and their follow edges. Content they authored stays.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.userRepo.Delete(ctx, id)
}

// Authenticate checks a username/password pair against the stored hash.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	invalid := models.NewUnauthorizedError("invalid user or password")

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		observability.AuthAttempts.WithLabelValues("unknown_user").Inc()
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		observability.AuthAttempts.WithLabelValues("bad_password").Inc()
		return nil, invalid
	}

	observability.AuthAttempts.WithLabelValues("success").Inc()
	return user, nil
}

func (s *UserService) requireUsers(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if _, err := s.userRepo.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
