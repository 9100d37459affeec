package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/moolah-app/moolah-api/internal/models"
	"github.com/moolah-app/moolah-api/internal/service"
	"github.com/moolah-app/moolah-api/pkg/response"
)

type userRepoMock struct {
	users map[string]*models.User
}

func (m *userRepoMock) FindByUsername(ctx context.Context, username string, role *models.UserRole) (*models.User, error) {
	user, ok := m.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if role != nil && user.Role != *role {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type studentReaderMock struct{}

func (m *studentReaderMock) FindByName(ctx context.Context, name string) (*models.Student, error) {
	return nil, sql.ErrNoRows
}

func newAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("chalkboard"), bcrypt.DefaultCost)
	require.NoError(t, err)
	users := &userRepoMock{users: map[string]*models.User{
		"ms-frizzle": {ID: "u1", Username: "ms-frizzle", PasswordHash: string(hash), Role: models.RoleTeacher},
	}}
	svc := service.NewAuthService(users, &studentReaderMock{}, validator.New(), zap.NewNop(), service.AuthConfig{
		Secret:     "secret",
		Expiration: time.Hour,
		Issuer:     "moolah-api",
	})
	return NewAuthHandler(svc)
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandler(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"username":"ms-frizzle","password":"chalkboard"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["is_authenticated"])
	assert.NotEmpty(t, data["token"])
}

func TestAuthHandlerLoginWrongPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandler(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"username":"ms-frizzle","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", envelope.Error.Code)
}

func TestAuthHandlerLoginMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandler(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"username":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Login(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerCheckAuthWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandler(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/auth/check-auth", nil)
	c.Request = req

	handler.CheckAuth(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, data["is_authenticated"])
}
