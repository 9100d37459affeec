package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/moolah-app/moolah-api/internal/models"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
)

type authUserRepository interface {
	FindByUsername(ctx context.Context, username string, role *models.UserRole) (*models.User, error)
}

type authStudentReader interface {
	FindByName(ctx context.Context, name string) (*models.Student, error)
}

// AuthConfig defines configuration for token issuance.
type AuthConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// LoginRequest is the login payload; role narrows the credential lookup when
// the client knows which portal it is.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=teacher student"`
}

// LoginResponse mirrors the contract the client pages expect.
type LoginResponse struct {
	Token           string          `json:"token"`
	Role            models.UserRole `json:"role"`
	StudentID       string          `json:"student_id,omitempty"`
	IsAuthenticated bool            `json:"is_authenticated"`
}

// CheckAuthResponse reports token validity without ever erroring.
type CheckAuthResponse struct {
	IsAuthenticated bool              `json:"is_authenticated"`
	User            *models.JWTClaims `json:"user,omitempty"`
}

// AuthService verifies credentials and issues HS256 access tokens.
// Passwords are stored and compared as bcrypt hashes.
type AuthService struct {
	users     authUserRepository
	students  authStudentReader
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, students authStudentReader, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{users: users, students: students, validator: validate, logger: logger, config: config}
}

// Login authenticates a credential and returns the token plus the role and,
// for students, their linked student ID.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	var role *models.UserRole
	if req.Role != "" {
		r := models.UserRole(req.Role)
		role = &r
	}

	user, err := s.users.FindByUsername(ctx, req.Username, role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid password")
	}

	response := &LoginResponse{Role: user.Role, IsAuthenticated: true}

	if user.Role == models.RoleStudent {
		student, err := s.students.FindByName(ctx, user.Username)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student data not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		response.StudentID = student.ID
	}

	token, err := s.generateToken(user, response.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	response.Token = token

	return response, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

// CheckAuth reports whether the token is valid; a bad or absent token is not
// an error, just an unauthenticated answer.
func (s *AuthService) CheckAuth(tokenString string) CheckAuthResponse {
	if tokenString == "" {
		return CheckAuthResponse{}
	}
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return CheckAuthResponse{}
	}
	return CheckAuthResponse{IsAuthenticated: true, User: claims}
}

func (s *AuthService) generateToken(user *models.User, studentID string) (string, error) {
	issuedAt := time.Now().UTC()
	claims := &models.JWTClaims{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		StudentID: studentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.Expiration)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}
