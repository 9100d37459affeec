package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moolah-app/moolah-api/internal/models"
	"github.com/moolah-app/moolah-api/internal/repository"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
)

type fakeMarketplaceRepo struct {
	items        map[string]*models.MarketplaceItem
	balances     map[string]int
	lastPurchase *repository.PurchaseUpdate
}

func (f *fakeMarketplaceRepo) List(ctx context.Context) ([]models.MarketplaceItem, error) {
	var out []models.MarketplaceItem
	for _, item := range f.items {
		out = append(out, *item)
	}
	return out, nil
}

func (f *fakeMarketplaceRepo) FindByID(ctx context.Context, id string) (*models.MarketplaceItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *item
	return &copied, nil
}

func (f *fakeMarketplaceRepo) Create(ctx context.Context, item *models.MarketplaceItem) error {
	item.ID = "m-new"
	f.items[item.ID] = item
	return nil
}

func (f *fakeMarketplaceRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

func (f *fakeMarketplaceRepo) Purchase(ctx context.Context, update repository.PurchaseUpdate) (int, error) {
	balance, ok := f.balances[update.StudentID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	if balance < update.Price {
		return 0, repository.ErrInsufficientBalance
	}
	f.balances[update.StudentID] = balance - update.Price
	f.lastPurchase = &update
	return f.balances[update.StudentID], nil
}

func newMarketplaceFixture() (*MarketplaceService, *fakeMarketplaceRepo) {
	icon := "golden"
	repo := &fakeMarketplaceRepo{
		items: map[string]*models.MarketplaceItem{
			"m1": {ID: "m1", Name: "Golden Cow", Price: 40, Icon: &icon},
		},
		balances: map[string]int{"s1": 40},
	}
	students := &fakeStudentReader{students: map[string]*models.Student{
		"s1": {ID: "s1", Name: "Alice", Balance: 40},
	}}
	svc := NewMarketplaceService(repo, students, nil, validator.New(), zap.NewNop())
	return svc, repo
}

func TestMarketplacePurchaseExactBalance(t *testing.T) {
	svc, repo := newMarketplaceFixture()

	result, err := svc.Purchase(context.Background(), "m1", PurchaseRequest{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.NewBalance)
	assert.Equal(t, "Golden Cow", result.Item.Name)

	require.NotNil(t, repo.lastPurchase)
	assert.Equal(t, models.TransactionSpent, repo.lastPurchase.Entry.Type)
	assert.Equal(t, 40, repo.lastPurchase.Entry.Amount)
	assert.Contains(t, repo.lastPurchase.Entry.Description, "Golden Cow")
	require.NotNil(t, repo.lastPurchase.Icon)
	assert.Equal(t, "golden", *repo.lastPurchase.Icon)
}

func TestMarketplacePurchaseInsufficientBalance(t *testing.T) {
	svc, repo := newMarketplaceFixture()
	repo.balances["s1"] = 39

	_, err := svc.Purchase(context.Background(), "m1", PurchaseRequest{StudentID: "s1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInsufficientFunds.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 39, repo.balances["s1"], "a rejected purchase must not move the balance")
	assert.Nil(t, repo.lastPurchase)
}

func TestMarketplacePurchaseUnknownItem(t *testing.T) {
	svc, _ := newMarketplaceFixture()

	_, err := svc.Purchase(context.Background(), "ghost", PurchaseRequest{StudentID: "s1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMarketplaceCreateRejectsZeroPrice(t *testing.T) {
	svc, _ := newMarketplaceFixture()

	_, err := svc.Create(context.Background(), CreateItemRequest{Name: "Freebie", Price: 0})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
