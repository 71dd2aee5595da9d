package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/demesis221/PawRescue/internal/model"
	"github.com/demesis221/PawRescue/internal/pkg/jwt"
	"github.com/demesis221/PawRescue/internal/repository"
)

// AuthService handles signup, login and identity lookups.
type AuthService struct {
	profiles *repository.ProfileRepo
}

func NewAuthService(profiles *repository.ProfileRepo) *AuthService {
	return &AuthService{profiles: profiles}
}

// Register creates a profile and returns a token response. The username is
// derived from the email local part when not provided, and is always stored
// lowercase with no whitespace.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.TokenResponse, error) {
	cctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(req.Email))

	username := req.Username
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}

	if taken, err := s.profiles.EmailExists(cctx, email); err != nil {
		return nil, &UpstreamError{Op: "select", Err: err}
	} else if taken {
		return nil, ErrEmailExists
	}
	if taken, err := s.profiles.UsernameExists(cctx, username); err != nil {
		return nil, &UpstreamError{Op: "select", Err: err}
	} else if taken {
		return nil, ErrUsernameExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	profile := &model.Profile{
		Email:    email,
		Password: string(hash),
		FullName: strings.TrimSpace(req.FullName),
		Username: username,
		Phone:    strings.TrimSpace(req.Phone),
		Role:     "user",
	}
	if err := s.profiles.Create(cctx, profile); err != nil {
		return nil, &UpstreamError{Op: "insert", Err: err}
	}

	return s.tokenResponse(profile)
}

// Login authenticates a user and returns a token response.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.TokenResponse, error) {
	cctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	profile, err := s.profiles.GetByEmail(cctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, &UpstreamError{Op: "select", Err: err}
	}
	if profile == nil {
		return nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.tokenResponse(profile)
}

// GetProfile returns the profile behind an auth identity.
func (s *AuthService) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	cctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	profile, err := s.profiles.GetByID(cctx, id)
	if err != nil {
		return nil, &UpstreamError{Op: "select", Err: err}
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

func (s *AuthService) tokenResponse(profile *model.Profile) (*model.TokenResponse, error) {
	token, err := jwt.GenerateToken(profile.ID, profile.Username, profile.Role)
	if err != nil {
		return nil, err
	}
	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        profile,
	}, nil
}

func normalizeUsername(username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return "", &model.ValidationError{Field: "username", Msg: "is required"}
	}
	if strings.ContainsAny(username, " \t\n") {
		return "", &model.ValidationError{Field: "username", Msg: "must not contain whitespace"}
	}
	return username, nil
}
