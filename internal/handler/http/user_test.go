package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fly-pay/corporate-banking-backend/pkg/errors"
	"github.com/fly-pay/corporate-banking-backend/pkg/pagination"

	"github.com/fly-pay/corporate-banking-backend/internal/domain"
)

func adminToken(t *testing.T) string {
	t.Helper()
	admin := directoryUser()
	admin.ID = "550e8400-e29b-41d4-a716-446655440099"
	admin.Email = "ops.admin@flypay.example"
	admin.Role = domain.RoleAdmin

	access, err := handlerTestCodec().SignAccessToken(admin)
	require.NoError(t, err)
	return access
}

func userToken(t *testing.T) string {
	t.Helper()
	access, err := handlerTestCodec().SignAccessToken(directoryUser())
	require.NoError(t, err)
	return access
}

func TestGetUserEndpoint_Success(t *testing.T) {
	userRepo := new(mockUserRepo)
	router := setupRouter(userRepo)

	userRepo.On("GetByID", mock.Anything, handlerUserID).Return(directoryUser(), nil)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/users/"+handlerUserID, userToken(t), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, handlerUserID, resp.Data.(map[string]any)["id"])
}

func TestGetUserEndpoint_RequiresToken(t *testing.T) {
	router := setupRouter(new(mockUserRepo))

	rec := doJSON(t, router, http.MethodGet, "/api/v1/users/"+handlerUserID, "", nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetUserEndpoint_NotFound(t *testing.T) {
	userRepo := new(mockUserRepo)
	router := setupRouter(userRepo)

	userRepo.On("GetByID", mock.Anything, "missing-id").Return(nil, apperrors.ErrNotFound)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/users/missing-id", userToken(t), nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestListUsersEndpoint_AdminOnly(t *testing.T) {
	userRepo := new(mockUserRepo)
	router := setupRouter(userRepo)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/users/", userToken(t), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	userRepo.On("List", mock.Anything, mock.AnythingOfType("pagination.Params")).
		Return([]domain.User{*directoryUser()}, nil)
	userRepo.On("Count", mock.Anything).Return(1, nil)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/users/", adminToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["total_count"])
}

func TestCreateUserEndpoint_AdminOnly(t *testing.T) {
	userRepo := new(mockUserRepo)
	router := setupRouter(userRepo)

	body := map[string]string{
		"email":      "new.user@flypay.example",
		"password":   "password1",
		"first_name": "Rui",
		"last_name":  "Costa",
		"role":       "ADMIN",
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/users/", userToken(t), body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	userRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/users/", adminToken(t), body)
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeResponse(t, rec)
	assert.Equal(t, "ADMIN", resp.Data.(map[string]any)["role"])
}

func TestCreateUserEndpoint_RejectsUnknownRole(t *testing.T) {
	router := setupRouter(new(mockUserRepo))

	rec := doJSON(t, router, http.MethodPost, "/api/v1/users/", adminToken(t), map[string]string{
		"email":      "new.user@flypay.example",
		"password":   "password1",
		"first_name": "Rui",
		"last_name":  "Costa",
		"role":       "ROOT",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestUpdateUserEndpoint_PartialBody(t *testing.T) {
	userRepo := new(mockUserRepo)
	router := setupRouter(userRepo)

	userRepo.On("GetByID", mock.Anything, handlerUserID).Return(directoryUser(), nil)
	userRepo.On("Update", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/users/"+handlerUserID, userToken(t), map[string]string{
		"first_name": "Anabela",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "Anabela", data["first_name"])
	assert.Equal(t, "Silva", data["last_name"])
}

func TestDeleteUserEndpoint_AdminOnly(t *testing.T) {
	userRepo := new(mockUserRepo)
	router := setupRouter(userRepo)

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/users/"+handlerUserID, userToken(t), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	userRepo.On("GetByID", mock.Anything, handlerUserID).Return(directoryUser(), nil)
	userRepo.On("Delete", mock.Anything, handlerUserID).Return(nil)

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/users/"+handlerUserID, adminToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.Equal(t, "deleted", resp.Data.(map[string]any)["status"])
}

func TestListUsersEndpoint_Pagination(t *testing.T) {
	userRepo := new(mockUserRepo)
	router := setupRouter(userRepo)

	userRepo.On("List", mock.Anything, pagination.Params{Page: 2, PerPage: 5, Offset: 5}).
		Return([]domain.User{}, nil)
	userRepo.On("Count", mock.Anything).Return(12, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/users/?page=2&per_page=5", adminToken(t), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(2), data["page"])
	assert.Equal(t, float64(3), data["total_pages"])

	userRepo.AssertExpectations(t)
}
