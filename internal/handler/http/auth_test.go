package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/fly-pay/corporate-banking-backend/pkg/errors"
	"github.com/fly-pay/corporate-banking-backend/pkg/health"
	"github.com/fly-pay/corporate-banking-backend/pkg/httputil"
	pkgkafka "github.com/fly-pay/corporate-banking-backend/pkg/kafka"
	"github.com/fly-pay/corporate-banking-backend/pkg/middleware"
	"github.com/fly-pay/corporate-banking-backend/pkg/pagination"

	"github.com/fly-pay/corporate-banking-backend/internal/domain"
	"github.com/fly-pay/corporate-banking-backend/internal/event"
	"github.com/fly-pay/corporate-banking-backend/internal/service"
	"github.com/fly-pay/corporate-banking-backend/internal/token"
)

// ============================================================================
// Mock User Repository
// ============================================================================

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserRepo) List(ctx context.Context, params pagination.Params) ([]domain.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// ============================================================================
// Test Helpers
// ============================================================================

func handlerTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func handlerTestCodec() *token.Codec {
	return token.NewCodec("0123456789abcdef0123456789abcdef", "identity-service", time.Hour, 7*24*time.Hour)
}

func handlerTestEventProducer() *event.Producer {
	logger := handlerTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:19092"})
	kafkaProducer := pkgkafka.NewProducer(kafkaCfg, logger)
	return event.NewProducer(kafkaProducer, logger)
}

// setupRouter builds the production router over mocked persistence.
func setupRouter(userRepo *mockUserRepo) http.Handler {
	logger := handlerTestLogger()
	codec := handlerTestCodec()
	validator := token.NewValidator(codec)
	evaluator := token.NewEvaluator(validator, string(domain.RoleAdmin), string(domain.RoleUser))
	producer := handlerTestEventProducer()

	authService := service.NewAuthService(userRepo, codec, validator, evaluator, producer, logger)
	userService := service.NewUserService(userRepo, producer, logger)

	return NewRouter(authService, userService, validator, health.NewHandler(), logger, middleware.DefaultCORSConfig(), nil)
}

func doJSON(t *testing.T, router http.Handler, method, path, authToken string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// handlerHash creates a bcrypt hash with cost 4 for fast tests.
func handlerHash(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), 4)
	if err != nil {
		panic(err)
	}
	return string(h)
}

const handlerUserID = "550e8400-e29b-41d4-a716-446655440001"

func directoryUser() *domain.User {
	now := time.Now().UTC()
	return &domain.User{
		ID:           handlerUserID,
		Email:        "a@x.com",
		PasswordHash: handlerHash("p1"),
		FirstName:    "Ana",
		LastName:     "Silva",
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ============================================================================
// Auth Endpoint Tests
// ============================================================================

func TestSignUpEndpoint_Success(t *testing.T) {
	userRepo := new(mockUserRepo)
	router := setupRouter(userRepo)

	userRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, apperrors.ErrNotFound)
	userRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":      "a@x.com",
		"password":   "password1",
		"first_name": "Ana",
		"last_name":  "Silva",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	resp := decodeResponse(t, rec)
	require.Nil(t, resp.Error)
	data := resp.Data.(map[string]any)
	tokens := data["tokens"].(map[string]any)
	assert.NotEmpty(t, tokens["access_token"])
	assert.NotEmpty(t, tokens["refresh_token"])
	assert.Equal(t, "Bearer", tokens["token_type"])
	assert.Equal(t, float64(3600), tokens["expires_in"])
	assert.Equal(t, "read write", tokens["scope"])

	userRepo.AssertExpectations(t)
}

func TestSignUpEndpoint_MinimalBody(t *testing.T) {
	// Email and password alone are enough; names are optional profile
	// attributes and no password length is enforced.
	userRepo := new(mockUserRepo)
	router := setupRouter(userRepo)

	userRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, apperrors.ErrNotFound)
	userRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    "a@x.com",
		"password": "p1",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeResponse(t, rec)
	require.Nil(t, resp.Error)
	tokens := resp.Data.(map[string]any)["tokens"].(map[string]any)
	assert.NotEmpty(t, tokens["access_token"])
	assert.NotEmpty(t, tokens["refresh_token"])

	userRepo.AssertExpectations(t)
}

func TestSignUpEndpoint_ValidationError(t *testing.T) {
	router := setupRouter(new(mockUserRepo))

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    "not-an-email",
		"password": "p",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "email")
}

func TestLoginEndpoint_InvalidCredentials(t *testing.T) {
	userRepo := new(mockUserRepo)
	router := setupRouter(userRepo)

	userRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(directoryUser(), nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "a@x.com",
		"password": "wrong",
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", resp.Error.Code)
}

func TestLoginEndpoint_DirectoryDown(t *testing.T) {
	userRepo := new(mockUserRepo)
	router := setupRouter(userRepo)

	userRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, assert.AnError)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "a@x.com",
		"password": "p1",
	})

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
}

func TestValidateEndpoint_InvalidTokenIsOK(t *testing.T) {
	router := setupRouter(new(mockUserRepo))

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/validate", "", map[string]string{
		"token": "garbage",
	})

	// An invalid token is a normal outcome, not an error status.
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, false, data["valid"])
	assert.Equal(t, "token malformed", data["reason"])
}

func TestValidateEndpoint_ValidToken(t *testing.T) {
	router := setupRouter(new(mockUserRepo))

	access, err := handlerTestCodec().SignAccessToken(directoryUser())
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/validate", "", map[string]string{
		"token": access,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["valid"])
	identity := data["identity"].(map[string]any)
	assert.Equal(t, handlerUserID, identity["user_id"])
}

func TestCheckPermissionEndpoint(t *testing.T) {
	router := setupRouter(new(mockUserRepo))

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/check-permission", "", map[string]string{
		"token":    "garbage",
		"resource": "accounts",
		"scope":    "read",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, false, data["granted"])
	assert.Equal(t, "Invalid token", data["message"])
}

func TestUserInfoEndpoint_MissingHeader(t *testing.T) {
	router := setupRouter(new(mockUserRepo))

	rec := doJSON(t, router, http.MethodGet, "/api/v1/auth/userinfo", "", nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshEndpoint_RejectsAccessToken(t *testing.T) {
	router := setupRouter(new(mockUserRepo))

	access, err := handlerTestCodec().SignAccessToken(directoryUser())
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": access,
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_TOKEN", resp.Error.Code)
}

func TestContentTypeEnforced(t *testing.T) {
	router := setupRouter(new(mockUserRepo))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "text/plain")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// ============================================================================
// End-to-end scenario: signup, login, protected access
// ============================================================================

func TestAuthFlow_SignupLoginProtected(t *testing.T) {
	userRepo := new(mockUserRepo)
	router := setupRouter(userRepo)

	var created *domain.User
	userRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, apperrors.ErrNotFound).Once()
	userRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.User) }).
		Return(nil)

	// Signup mints a token pair.
	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":      "a@x.com",
		"password":   "password1",
		"first_name": "Ana",
		"last_name":  "Silva",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	access := resp.Data.(map[string]any)["tokens"].(map[string]any)["access_token"].(string)

	// The same credentials authenticate.
	userRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(created, nil)
	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "a@x.com",
		"password": "password1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// The wrong password does not.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "a@x.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// A protected endpoint without a token is rejected.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/auth/userinfo", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// With the issued access token it resolves to the signed-up user.
	userRepo.On("GetByID", mock.Anything, created.ID).Return(created, nil)
	rec = doJSON(t, router, http.MethodGet, "/api/v1/auth/userinfo", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeResponse(t, rec)
	assert.Equal(t, created.ID, resp.Data.(map[string]any)["id"])
}
