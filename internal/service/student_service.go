package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/moolah-app/moolah-api/internal/models"
	"github.com/moolah-app/moolah-api/internal/repository"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
	"github.com/moolah-app/moolah-api/pkg/export"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	CreateWithUser(ctx context.Context, student *models.Student, user *models.User) error
	DeleteWithUser(ctx context.Context, id string) error
	UpdateIcon(ctx context.Context, id, icon string) error
	UpdateLevel(ctx context.Context, id string, level int) error
	UpdateClass(ctx context.Context, id string, classID *string) error
	AdjustBalance(ctx context.Context, id string, delta int, entry *models.Transaction) (int, error)
	Deduct(ctx context.Context, id string, amount int, entry *models.Transaction) (int, error)
	BalanceReport(ctx context.Context) ([]models.BalanceReportRow, error)
}

type studentClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type dashboardTaskLister interface {
	List(ctx context.Context, filter models.TaskFilter) ([]models.TaskDetail, error)
}

type dashboardLedgerLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Transaction, error)
}

type dashboardItemLister interface {
	List(ctx context.Context) ([]models.MarketplaceItem, error)
}

// CreateStudentRequest holds payload for enrolling a student, which also
// provisions their login credential.
type CreateStudentRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=4"`
}

// AdjustBalanceRequest is a signed manual balance change.
type AdjustBalanceRequest struct {
	Amount      int    `json:"amount" validate:"required"`
	Description string `json:"description"`
}

// FineRequest deducts a positive amount, subject to sufficiency.
type FineRequest struct {
	Amount      int    `json:"amount" validate:"required,gt=0"`
	Description string `json:"description"`
}

// UpdateIconRequest sets the student's cosmetic icon.
type UpdateIconRequest struct {
	Icon string `json:"icon" validate:"required"`
}

// UpdateLevelRequest overrides the student's level manually.
type UpdateLevelRequest struct {
	Level int `json:"level" validate:"required,gte=1"`
}

// UpdateClassRequest moves the student to a class; empty detaches them.
type UpdateClassRequest struct {
	ClassID string `json:"class_id"`
}

// StudentService handles student use-cases: roster management, balance
// mutations with their ledger entries, dashboards, and the balance report.
type StudentService struct {
	repo      studentRepository
	classes   studentClassReader
	tasks     dashboardTaskLister
	ledger    dashboardLedgerLister
	items     dashboardItemLister
	cache     *CacheService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, classes studentClassReader, tasks dashboardTaskLister, ledger dashboardLedgerLister, items dashboardItemLister, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:      repo,
		classes:   classes,
		tasks:     tasks,
		ledger:    ledger,
		items:     items,
		cache:     cache,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create enrolls a student and their login credential in one transaction.
// The password is stored as a bcrypt hash.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student name already used")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	student := &models.Student{Name: req.Name, Level: 1}
	user := &models.User{Username: req.Name, PasswordHash: string(hash), Role: models.RoleStudent}
	if err := s.repo.CreateWithUser(ctx, student, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Delete removes the student together with their credential and ledger.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteWithUser(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.invalidateDashboard(ctx, id)
	return nil
}

// AdjustBalance applies a signed manual adjustment with its ledger entry.
// Negative resulting balances are allowed here by design of the original
// workflow; only fines are sufficiency-checked.
func (s *StudentService) AdjustBalance(ctx context.Context, id string, req AdjustBalanceRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid balance payload")
	}

	entryType := models.TransactionEarned
	if req.Amount < 0 {
		entryType = models.TransactionSpent
	}
	description := req.Description
	if description == "" {
		description = "Manual balance adjustment"
	}
	entry := &models.Transaction{
		StudentID:   id,
		Type:        entryType,
		Amount:      abs(req.Amount),
		Description: description,
	}

	if _, err := s.repo.AdjustBalance(ctx, id, req.Amount, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to adjust balance")
	}

	s.invalidateDashboard(ctx, id)
	return s.Get(ctx, id)
}

// Fine deducts a positive amount, rejecting overdrafts.
func (s *StudentService) Fine(ctx context.Context, id string, req FineRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "fine amount must be positive")
	}

	description := req.Description
	if description == "" {
		description = "Fine"
	}
	entry := &models.Transaction{
		StudentID:   id,
		Type:        models.TransactionFine,
		Amount:      req.Amount,
		Description: description,
	}

	if _, err := s.repo.Deduct(ctx, id, req.Amount, entry); err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, appErrors.Clone(appErrors.ErrInsufficientFunds, "fine exceeds student balance")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply fine")
	}

	s.invalidateDashboard(ctx, id)
	return s.Get(ctx, id)
}

// UpdateIcon sets the student's cosmetic icon.
func (s *StudentService) UpdateIcon(ctx context.Context, id string, req UpdateIconRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid icon payload")
	}
	if err := s.repo.UpdateIcon(ctx, id, req.Icon); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update icon")
	}
	s.invalidateDashboard(ctx, id)
	return s.Get(ctx, id)
}

// UpdateLevel sets the level directly, bypassing the progression engine. The
// completed-task counter is left alone so in-flight progress carries over.
func (s *StudentService) UpdateLevel(ctx context.Context, id string, req UpdateLevelRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid level payload")
	}
	if err := s.repo.UpdateLevel(ctx, id, req.Level); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update level")
	}
	s.invalidateDashboard(ctx, id)
	return s.Get(ctx, id)
}

// UpdateClass moves the student to another class, or detaches them when the
// class ID is empty.
func (s *StudentService) UpdateClass(ctx context.Context, id string, req UpdateClassRequest) (*models.Student, error) {
	var classID *string
	if req.ClassID != "" {
		if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
		classID = &req.ClassID
	}

	if err := s.repo.UpdateClass(ctx, id, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return s.Get(ctx, id)
}

// Dashboard aggregates everything the student home page needs, served from
// cache when fresh.
func (s *StudentService) Dashboard(ctx context.Context, id string) (*models.StudentDashboard, error) {
	key := dashboardCacheKey(id)
	var cached models.StudentDashboard
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	tasks, err := s.tasks.List(ctx, models.TaskFilter{AssignedTo: id})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tasks")
	}
	entries, err := s.ledger.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transactions")
	}
	items, err := s.items.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marketplace")
	}

	dashboard := &models.StudentDashboard{
		Balance:      student.Balance,
		CowIcon:      student.CowIcon,
		Level:        student.Level,
		Tasks:        tasks,
		Transactions: entries,
		Marketplace:  items,
	}

	if err := s.cache.Set(ctx, key, dashboard, 0); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("student_id", id), zap.Error(err))
	}
	return dashboard, nil
}

// BalanceReport returns one row per student with lifetime earned/spent sums.
func (s *StudentService) BalanceReport(ctx context.Context) ([]models.BalanceReportRow, error) {
	rows, err := s.repo.BalanceReport(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build balance report")
	}
	return rows, nil
}

// RenderBalanceReport renders the report rows into csv or pdf bytes.
func (s *StudentService) RenderBalanceReport(rows []models.BalanceReportRow, format string) ([]byte, string, error) {
	dataset := export.Dataset{
		Headers: []string{"Student", "Level", "Balance", "Earned", "Spent"},
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student": row.Name,
			"Level":   strconv.Itoa(row.Level),
			"Balance": strconv.Itoa(row.Balance),
			"Earned":  strconv.Itoa(row.Earned),
			"Spent":   strconv.Itoa(row.Spent),
		})
	}

	switch format {
	case "csv":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return data, "text/csv", nil
	case "pdf":
		data, err := s.pdf.Render(dataset, "Class balance report")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return data, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}
}

func (s *StudentService) invalidateDashboard(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, dashboardCacheKey(id)); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.String("student_id", id), zap.Error(err))
	}
}

func dashboardCacheKey(studentID string) string {
	return "dashboard:student:" + studentID
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
