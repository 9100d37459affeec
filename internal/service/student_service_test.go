package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/moolah-app/moolah-api/internal/models"
	"github.com/moolah-app/moolah-api/internal/repository"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
)

type fakeStudentRepo struct {
	students    map[string]*models.Student
	createdUser *models.User
	entries     []models.Transaction
	deductErr   error
	deleted     []string
}

func (f *fakeStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, s := range f.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (f *fakeStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	s, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *s
	return &copied, nil
}

func (f *fakeStudentRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	for _, s := range f.students {
		if s.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStudentRepo) CreateWithUser(ctx context.Context, student *models.Student, user *models.User) error {
	student.ID = "s-new"
	f.students[student.ID] = student
	f.createdUser = user
	return nil
}

func (f *fakeStudentRepo) DeleteWithUser(ctx context.Context, id string) error {
	if _, ok := f.students[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.students, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStudentRepo) UpdateIcon(ctx context.Context, id, icon string) error {
	s, ok := f.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.CowIcon = &icon
	return nil
}

func (f *fakeStudentRepo) UpdateLevel(ctx context.Context, id string, level int) error {
	s, ok := f.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Level = level
	return nil
}

func (f *fakeStudentRepo) UpdateClass(ctx context.Context, id string, classID *string) error {
	s, ok := f.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.ClassID = classID
	return nil
}

func (f *fakeStudentRepo) AdjustBalance(ctx context.Context, id string, delta int, entry *models.Transaction) (int, error) {
	s, ok := f.students[id]
	if !ok {
		return 0, sql.ErrNoRows
	}
	s.Balance += delta
	f.entries = append(f.entries, *entry)
	return s.Balance, nil
}

func (f *fakeStudentRepo) Deduct(ctx context.Context, id string, amount int, entry *models.Transaction) (int, error) {
	if f.deductErr != nil {
		return 0, f.deductErr
	}
	s, ok := f.students[id]
	if !ok {
		return 0, sql.ErrNoRows
	}
	if s.Balance < amount {
		return 0, repository.ErrInsufficientBalance
	}
	s.Balance -= amount
	f.entries = append(f.entries, *entry)
	return s.Balance, nil
}

func (f *fakeStudentRepo) BalanceReport(ctx context.Context) ([]models.BalanceReportRow, error) {
	var rows []models.BalanceReportRow
	for _, s := range f.students {
		rows = append(rows, models.BalanceReportRow{StudentID: s.ID, Name: s.Name, Balance: s.Balance, Level: s.Level})
	}
	return rows, nil
}

type fakeClassReader struct {
	classes map[string]*models.Class
}

func (f *fakeClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	class, ok := f.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return class, nil
}

type fakeLedgerLister struct{ entries []models.Transaction }

func (f *fakeLedgerLister) ListByStudent(ctx context.Context, studentID string) ([]models.Transaction, error) {
	return f.entries, nil
}

type fakeItemLister struct{ items []models.MarketplaceItem }

func (f *fakeItemLister) List(ctx context.Context) ([]models.MarketplaceItem, error) {
	return f.items, nil
}

func newStudentServiceFixture() (*StudentService, *fakeStudentRepo) {
	repo := &fakeStudentRepo{students: map[string]*models.Student{
		"s1": {ID: "s1", Name: "Alice", Balance: 50, Level: 1},
	}}
	classes := &fakeClassReader{classes: map[string]*models.Class{"c1": {ID: "c1", Name: "4B"}}}
	tasks := &fakeTaskRepo{tasks: map[string]*models.Task{}}
	svc := NewStudentService(repo, classes, tasks, &fakeLedgerLister{}, &fakeItemLister{}, nil, validator.New(), zap.NewNop())
	return svc, repo
}

func TestStudentServiceCreateHashesPassword(t *testing.T) {
	svc, repo := newStudentServiceFixture()

	student, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Bob", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, 1, student.Level)
	assert.Equal(t, 0, student.Balance)

	require.NotNil(t, repo.createdUser)
	assert.Equal(t, models.RoleStudent, repo.createdUser.Role)
	assert.NotEqual(t, "secret", repo.createdUser.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.createdUser.PasswordHash), []byte("secret")))
}

func TestStudentServiceCreateDuplicateName(t *testing.T) {
	svc, _ := newStudentServiceFixture()

	_, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Alice", Password: "secret"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceAdjustBalanceNegative(t *testing.T) {
	svc, repo := newStudentServiceFixture()

	student, err := svc.AdjustBalance(context.Background(), "s1", AdjustBalanceRequest{Amount: -80})
	require.NoError(t, err)
	assert.Equal(t, -30, student.Balance, "manual adjustments may overdraw")

	require.Len(t, repo.entries, 1)
	assert.Equal(t, models.TransactionSpent, repo.entries[0].Type)
	assert.Equal(t, 80, repo.entries[0].Amount)
	assert.Equal(t, "Manual balance adjustment", repo.entries[0].Description)
}

func TestStudentServiceFineInsufficientBalance(t *testing.T) {
	svc, repo := newStudentServiceFixture()

	_, err := svc.Fine(context.Background(), "s1", FineRequest{Amount: 60})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInsufficientFunds.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 50, repo.students["s1"].Balance)
	assert.Empty(t, repo.entries)
}

func TestStudentServiceFineExactBalance(t *testing.T) {
	svc, repo := newStudentServiceFixture()

	student, err := svc.Fine(context.Background(), "s1", FineRequest{Amount: 50})
	require.NoError(t, err)
	assert.Equal(t, 0, student.Balance)

	require.Len(t, repo.entries, 1)
	assert.Equal(t, models.TransactionFine, repo.entries[0].Type)
}

func TestStudentServiceFineRejectsNonPositive(t *testing.T) {
	svc, _ := newStudentServiceFixture()

	_, err := svc.Fine(context.Background(), "s1", FineRequest{Amount: -5})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateLevel(t *testing.T) {
	svc, repo := newStudentServiceFixture()

	student, err := svc.UpdateLevel(context.Background(), "s1", UpdateLevelRequest{Level: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, student.Level)
	assert.Equal(t, 4, repo.students["s1"].Level)
}

func TestStudentServiceUpdateLevelRejectsZero(t *testing.T) {
	svc, _ := newStudentServiceFixture()

	_, err := svc.UpdateLevel(context.Background(), "s1", UpdateLevelRequest{Level: 0})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateClassUnknownClass(t *testing.T) {
	svc, _ := newStudentServiceFixture()

	_, err := svc.UpdateClass(context.Background(), "s1", UpdateClassRequest{ClassID: "ghost"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateClassDetach(t *testing.T) {
	svc, repo := newStudentServiceFixture()
	classID := "c1"
	repo.students["s1"].ClassID = &classID

	student, err := svc.UpdateClass(context.Background(), "s1", UpdateClassRequest{})
	require.NoError(t, err)
	assert.Nil(t, student.ClassID)
}

func TestStudentServiceDashboardAggregates(t *testing.T) {
	svc, repo := newStudentServiceFixture()
	icon := "spotted"
	repo.students["s1"].CowIcon = &icon

	dashboard, err := svc.Dashboard(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 50, dashboard.Balance)
	assert.Equal(t, 1, dashboard.Level)
	require.NotNil(t, dashboard.CowIcon)
	assert.Equal(t, "spotted", *dashboard.CowIcon)
}

func TestStudentServiceRenderBalanceReportCSV(t *testing.T) {
	svc, _ := newStudentServiceFixture()
	rows := []models.BalanceReportRow{{Name: "Alice", Level: 2, Balance: 130, Earned: 150, Spent: 20}}

	data, contentType, err := svc.RenderBalanceReport(rows, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(data), "Alice")
	assert.Contains(t, string(data), "130")
}

func TestStudentServiceRenderBalanceReportUnknownFormat(t *testing.T) {
	svc, _ := newStudentServiceFixture()

	_, _, err := svc.RenderBalanceReport(nil, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
