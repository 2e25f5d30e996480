package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/fly-pay/corporate-banking-backend/pkg/errors"

	"github.com/fly-pay/corporate-banking-backend/internal/domain"
	"github.com/fly-pay/corporate-banking-backend/internal/event"
	"github.com/fly-pay/corporate-banking-backend/internal/password"
	"github.com/fly-pay/corporate-banking-backend/internal/repository"
	"github.com/fly-pay/corporate-banking-backend/internal/token"
)

// tokenScope is the OAuth-style scope string attached to every issued pair.
const tokenScope = "read write"

// AuthService implements signup, login, token refresh, token validation and
// permission checks. Tokens are self-contained; nothing about an issued token
// is stored, so validation never touches the database.
type AuthService struct {
	userRepo  repository.UserRepository
	codec     *token.Codec
	validator *token.Validator
	evaluator *token.Evaluator
	producer  *event.Producer
	logger    *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	codec *token.Codec,
	validator *token.Validator,
	evaluator *token.Evaluator,
	producer *event.Producer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		codec:     codec,
		validator: validator,
		evaluator: evaluator,
		producer:  producer,
		logger:    logger,
	}
}

// SignUpInput holds the parameters for registering a new user. FirstName,
// LastName, and Phone are optional profile attributes.
type SignUpInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// SignUp creates a new user account, hashes the password, and returns tokens.
// Email uniqueness is pre-checked against the directory, then enforced again
// by the storage constraint at insert time.
func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	// Advisory uniqueness check. Two concurrent signups can both pass it;
	// the unique constraint on email catches the loser at insert time.
	if _, err := s.userRepo.GetByEmail(ctx, input.Email); err == nil {
		return nil, nil, apperrors.AlreadyExists("user", "email", input.Email)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil, s.directoryError(ctx, "check email uniqueness", err)
	}

	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		Role:         domain.DefaultRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, nil, apperrors.AlreadyExists("user", "email", input.Email)
		}
		return nil, nil, s.directoryError(ctx, "create user", err)
	}

	tokens, err := s.issueTokenPair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	// Publish registration event (non-blocking on failure).
	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, tokens, nil
}

// Authenticate verifies an email/password pair and returns fresh tokens.
// Unknown email and wrong password are reported identically to the caller;
// the log distinguishes them.
func (s *AuthService) Authenticate(ctx context.Context, email, pass string) (*domain.User, *domain.TokenPair, error) {
	if email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if pass == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.DebugContext(ctx, "login rejected: unknown email",
				slog.String("email", email),
			)
			return nil, nil, apperrors.InvalidCredentials()
		}
		return nil, nil, s.directoryError(ctx, "get user by email", err)
	}

	ok, err := password.Verify(user.PasswordHash, pass)
	if err != nil {
		return nil, nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.logger.DebugContext(ctx, "login rejected: password mismatch",
			slog.String("user_id", user.ID),
		)
		return nil, nil, apperrors.InvalidCredentials()
	}

	tokens, err := s.issueTokenPair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, tokens, nil
}

// Refresh mints a new token pair from a valid refresh token. Refresh tokens
// are not stored or chained; reusing one before it expires yields independent
// valid pairs.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidInput("refresh token is required")
	}

	claims, err := s.codec.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.InvalidToken("invalid or expired refresh token")
	}

	user, err := s.userRepo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", claims.Subject)
		}
		return nil, s.directoryError(ctx, "get user for token refresh", err)
	}

	tokens, err := s.issueTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("user_id", user.ID),
	)

	return tokens, nil
}

// ValidateToken checks an access token and returns the outcome. Validation is
// local signature verification; it never errors and never touches the
// directory.
func (s *AuthService) ValidateToken(tokenString string) token.Result {
	return s.validator.Validate(tokenString)
}

// CheckPermission decides whether the token's bearer may access the given
// resource and scope.
func (s *AuthService) CheckPermission(tokenString, resource, scope string) token.Decision {
	return s.evaluator.CheckPermission(tokenString, resource, scope)
}

// GetUserInfo resolves the token to its user's current directory record.
func (s *AuthService) GetUserInfo(ctx context.Context, tokenString string) (*domain.User, error) {
	result := s.validator.Validate(tokenString)
	if !result.Valid {
		return nil, apperrors.InvalidToken(result.Reason)
	}

	user, err := s.userRepo.GetByID(ctx, result.Identity.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", result.Identity.UserID)
		}
		return nil, s.directoryError(ctx, "get user info", err)
	}

	return user, nil
}

// Logout acknowledges the request. Tokens are stateless and there is no
// revocation store, so issued tokens remain valid until they expire.
func (s *AuthService) Logout(ctx context.Context, userID string) {
	s.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", userID),
	)
}

func (s *AuthService) issueTokenPair(user *domain.User) (*domain.TokenPair, error) {
	access, err := s.codec.SignAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.codec.SignRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
		Scope:        tokenScope,
	}, nil
}

// directoryError maps an unexpected directory failure to ServiceUnavailable.
// A directory outage must never surface as a credential failure.
func (s *AuthService) directoryError(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "user directory error",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	return apperrors.ServiceUnavailable("user directory unavailable")
}
