package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/moolah-app/moolah-api/internal/models"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context) ([]models.Class, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListStudents(ctx context.Context, classID string) ([]models.Student, error)
	Create(ctx context.Context, class *models.Class) error
	ReplaceStudents(ctx context.Context, classID string, studentIDs []string) error
	Delete(ctx context.Context, id string) error
}

// CreateClassRequest holds payload for creating a class.
type CreateClassRequest struct {
	Name       string   `json:"name" validate:"required"`
	StudentIDs []string `json:"student_ids" validate:"omitempty,dive,required"`
}

// UpdateClassStudentsRequest replaces the roster with the given student IDs.
type UpdateClassStudentsRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,dive,required"`
}

// ClassService manages class rosters.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs a ClassService.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, validator: validate, logger: logger}
}

// List returns every class.
func (s *ClassService) List(ctx context.Context) ([]models.Class, error) {
	classes, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// Get returns one class with its member students.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	students, err := s.repo.ListStudents(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class students")
	}

	return &models.ClassDetail{Class: *class, Students: students}, nil
}

// ListStudents returns the members of a class.
func (s *ClassService) ListStudents(ctx context.Context, classID string) ([]models.Student, error) {
	if _, err := s.repo.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	students, err := s.repo.ListStudents(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class students")
	}
	return students, nil
}

// Create registers a class and optionally seeds its roster.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class := &models.Class{Name: req.Name}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}

	if len(req.StudentIDs) > 0 {
		if err := s.repo.ReplaceStudents(ctx, class.ID, req.StudentIDs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign class students")
		}
	}

	return class, nil
}

// UpdateStudents replaces the class roster. Students listed are moved into the
// class, members no longer listed are unlinked.
func (s *ClassService) UpdateStudents(ctx context.Context, classID string, req UpdateClassStudentsRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster payload")
	}

	if _, err := s.repo.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if err := s.repo.ReplaceStudents(ctx, classID, req.StudentIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class roster")
	}
	return nil
}

// Delete removes the class; its members are unlinked, never deleted.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}
