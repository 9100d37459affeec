package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/moolah-app/moolah-api/internal/models"
	"github.com/moolah-app/moolah-api/internal/repository"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
)

type marketplaceRepository interface {
	List(ctx context.Context) ([]models.MarketplaceItem, error)
	FindByID(ctx context.Context, id string) (*models.MarketplaceItem, error)
	Create(ctx context.Context, item *models.MarketplaceItem) error
	Delete(ctx context.Context, id string) error
	Purchase(ctx context.Context, update repository.PurchaseUpdate) (int, error)
}

type marketplaceStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// CreateItemRequest holds payload for listing a new marketplace item.
type CreateItemRequest struct {
	Name  string  `json:"name" validate:"required"`
	Price int     `json:"price" validate:"required,gte=1"`
	Icon  *string `json:"icon"`
}

// PurchaseRequest identifies the buying student.
type PurchaseRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// PurchaseResult reports the outcome of a successful buy.
type PurchaseResult struct {
	Item       models.MarketplaceItem `json:"item"`
	NewBalance int                    `json:"new_balance"`
}

// MarketplaceService manages the item catalog and purchases.
type MarketplaceService struct {
	repo      marketplaceRepository
	students  marketplaceStudentReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMarketplaceService constructs a MarketplaceService.
func NewMarketplaceService(repo marketplaceRepository, students marketplaceStudentReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *MarketplaceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketplaceService{repo: repo, students: students, cache: cache, validator: validate, logger: logger}
}

// List returns the item catalog.
func (s *MarketplaceService) List(ctx context.Context) ([]models.MarketplaceItem, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marketplace items")
	}
	return items, nil
}

// Create lists a new item for sale.
func (s *MarketplaceService) Create(ctx context.Context, req CreateItemRequest) (*models.MarketplaceItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid item payload")
	}

	item := &models.MarketplaceItem{Name: req.Name, Price: req.Price, Icon: req.Icon}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create marketplace item")
	}
	return item, nil
}

// Delete removes an item from the catalog.
func (s *MarketplaceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "marketplace item not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete marketplace item")
	}
	return nil
}

// Purchase deducts the item price from the student, grants any cosmetic icon,
// and appends the Spent ledger entry. The deduction never overdrafts; a buyer
// who cannot afford the item gets a rejection and no state change.
func (s *MarketplaceService) Purchase(ctx context.Context, itemID string, req PurchaseRequest) (*PurchaseResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid purchase payload")
	}

	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "marketplace item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marketplace item")
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	update := repository.PurchaseUpdate{
		StudentID: req.StudentID,
		Price:     item.Price,
		Icon:      item.Icon,
		Entry: models.Transaction{
			StudentID:   req.StudentID,
			Type:        models.TransactionSpent,
			Amount:      item.Price,
			Description: fmt.Sprintf("Purchased item: %s", item.Name),
		},
	}

	balance, err := s.repo.Purchase(ctx, update)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, appErrors.Clone(appErrors.ErrInsufficientFunds, "purchase exceeds student balance")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete purchase")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, dashboardCacheKey(req.StudentID)); err != nil {
			s.logger.Warn("dashboard cache invalidation failed", zap.String("student_id", req.StudentID), zap.Error(err))
		}
	}

	return &PurchaseResult{Item: *item, NewBalance: balance}, nil
}
