package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/moolah-app/moolah-api/internal/models"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
)

type fakeUserRepo struct {
	users map[string]*models.User
}

func (f *fakeUserRepo) FindByUsername(ctx context.Context, username string, role *models.UserRole) (*models.User, error) {
	user, ok := f.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if role != nil && user.Role != *role {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserRepo) {
	t.Helper()
	teacherHash, err := bcrypt.GenerateFromPassword([]byte("chalkboard"), bcrypt.DefaultCost)
	require.NoError(t, err)
	studentHash, err := bcrypt.GenerateFromPassword([]byte("moo"), bcrypt.DefaultCost)
	require.NoError(t, err)

	users := &fakeUserRepo{users: map[string]*models.User{
		"ms-frizzle": {ID: "u1", Username: "ms-frizzle", PasswordHash: string(teacherHash), Role: models.RoleTeacher},
		"Alice":      {ID: "u2", Username: "Alice", PasswordHash: string(studentHash), Role: models.RoleStudent},
	}}
	students := &fakeStudentReader{students: map[string]*models.Student{}}
	students.students["s1"] = &models.Student{ID: "s1", Name: "Alice"}

	svc := NewAuthService(users, &studentByName{students}, validator.New(), zap.NewNop(), AuthConfig{
		Secret:     "secret",
		Expiration: time.Hour,
		Issuer:     "moolah-api",
	})
	return svc, users
}

// studentByName adapts the shared student fake to name lookups.
type studentByName struct {
	inner *fakeStudentReader
}

func (s *studentByName) FindByName(ctx context.Context, name string) (*models.Student, error) {
	for _, student := range s.inner.students {
		if student.Name == name {
			return student, nil
		}
	}
	return nil, sql.ErrNoRows
}

func TestAuthServiceLoginTeacher(t *testing.T) {
	svc, _ := newAuthFixture(t)

	res, err := svc.Login(context.Background(), LoginRequest{Username: "ms-frizzle", Password: "chalkboard"})
	require.NoError(t, err)
	assert.True(t, res.IsAuthenticated)
	assert.Equal(t, models.RoleTeacher, res.Role)
	assert.Empty(t, res.StudentID)
	assert.NotEmpty(t, res.Token)
}

func TestAuthServiceLoginStudentCarriesStudentID(t *testing.T) {
	svc, _ := newAuthFixture(t)

	res, err := svc.Login(context.Background(), LoginRequest{Username: "Alice", Password: "moo"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, res.Role)
	assert.Equal(t, "s1", res.StudentID)

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "s1", claims.StudentID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), LoginRequest{Username: "ms-frizzle", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginRoleMismatch(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), LoginRequest{Username: "Alice", Password: "moo", Role: "teacher"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceCheckAuth(t *testing.T) {
	svc, _ := newAuthFixture(t)

	res, err := svc.Login(context.Background(), LoginRequest{Username: "ms-frizzle", Password: "chalkboard"})
	require.NoError(t, err)

	checked := svc.CheckAuth(res.Token)
	assert.True(t, checked.IsAuthenticated)
	require.NotNil(t, checked.User)
	assert.Equal(t, "ms-frizzle", checked.User.Username)

	assert.False(t, svc.CheckAuth("garbage").IsAuthenticated)
	assert.False(t, svc.CheckAuth("").IsAuthenticated)
}

func TestAuthServiceValidateTokenRejectsForeignSignature(t *testing.T) {
	svc, _ := newAuthFixture(t)
	other := NewAuthService(&fakeUserRepo{}, nil, validator.New(), zap.NewNop(), AuthConfig{
		Secret:     "different",
		Expiration: time.Hour,
	})

	res, err := svc.Login(context.Background(), LoginRequest{Username: "ms-frizzle", Password: "chalkboard"})
	require.NoError(t, err)

	_, err = other.ValidateToken(res.Token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
