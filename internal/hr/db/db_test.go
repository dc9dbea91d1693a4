package db

import (
	"context"
	"errors"
	"testing"

	e "github.com/gartstein/hr/internal/hr/errors"
	"github.com/gartstein/hr/internal/hr/metrics"
	"github.com/gartstein/hr/internal/hr/models"
	"github.com/gartstein/hr/internal/pkg/utils"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SetupTestDB initializes an in-memory SQLite database for testing.
func SetupTestDB(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewSQLiteRepository(":memory:", metrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err, "failed to open test database")
	return repo
}

// TestQueryDurationObserved verifies that repository operations feed the
// query duration histogram.
func TestQueryDurationObserved(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	repo, err := NewSQLiteRepository(":memory:", m)
	require.NoError(t, err, "failed to open test database")
	ctx := context.Background()

	require.NoError(t, repo.CreateEmployee(ctx, newEmployee(uuid.New(), "Timed", nil, true)))
	_, err = repo.CountActiveEmployees(ctx, uuid.New())
	require.NoError(t, err)

	assert.Equal(t, 2, testutil.CollectAndCount(m.DBQueryDuration, "hr_db_query_duration_seconds"),
		"each query type should have an observed series")
}

func newEmployee(companyID uuid.UUID, name string, departmentID *uuid.UUID, active bool) *models.Employee {
	return &models.Employee{
		ID:           uuid.New(),
		CompanyID:    companyID,
		Name:         name,
		DepartmentID: departmentID,
		Active:       active,
	}
}

// TestGetEmployeeScoping verifies that GetEmployee hides inactive records
// while GetEmployeeIncludingInactive bypasses the scope.
func TestGetEmployeeScoping(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	employee := newEmployee(uuid.New(), "Dana", nil, false)
	require.NoError(t, repo.CreateEmployee(ctx, employee))

	_, err := repo.GetEmployee(ctx, employee.ID)
	assert.ErrorIs(t, err, e.ErrNotFound, "scoped read should not see inactive employees")

	got, err := repo.GetEmployeeIncludingInactive(ctx, employee.ID)
	assert.NoError(t, err, "unscoped read should see inactive employees")
	assert.Equal(t, employee.ID, got.ID)
	assert.False(t, got.Active)
}

// TestUpdateEmployeeFields covers partial updates, including clearing a
// nullable foreign key.
func TestUpdateEmployeeFields(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	departmentID := uuid.New()
	employee := newEmployee(uuid.New(), "Omar", &departmentID, true)
	require.NoError(t, repo.CreateEmployee(ctx, employee))

	// Update the name only; department and active flag must survive.
	err := repo.UpdateEmployeeFields(ctx, &models.EmployeeUpdate{
		ID:   employee.ID,
		Name: utils.Ptr("Omar K."),
	})
	assert.NoError(t, err)

	got, err := repo.GetEmployeeIncludingInactive(ctx, employee.ID)
	require.NoError(t, err)
	assert.Equal(t, "Omar K.", got.Name)
	require.NotNil(t, got.DepartmentID)
	assert.Equal(t, departmentID, *got.DepartmentID)
	assert.True(t, got.Active)

	// Clear the department.
	err = repo.UpdateEmployeeFields(ctx, &models.EmployeeUpdate{
		ID:           employee.ID,
		DepartmentID: &uuid.NullUUID{},
	})
	assert.NoError(t, err)

	got, err = repo.GetEmployeeIncludingInactive(ctx, employee.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DepartmentID, "department should be cleared")
}

func TestUpdateEmployeeFieldsNotFound(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	err := repo.UpdateEmployeeFields(ctx, &models.EmployeeUpdate{
		ID:   uuid.New(),
		Name: utils.Ptr("Nobody"),
	})
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestUpdateEmployeeFieldsEmptyUpdate(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	// An update with no fields set is a no-op, even for a missing record.
	err := repo.UpdateEmployeeFields(ctx, &models.EmployeeUpdate{ID: uuid.New()})
	assert.NoError(t, err)
}

func TestDeleteEmployee(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	employee := newEmployee(uuid.New(), "Lena", nil, true)
	require.NoError(t, repo.CreateEmployee(ctx, employee))

	assert.NoError(t, repo.DeleteEmployee(ctx, employee.ID))

	_, err := repo.GetEmployeeIncludingInactive(ctx, employee.ID)
	assert.ErrorIs(t, err, e.ErrNotFound)

	assert.ErrorIs(t, repo.DeleteEmployee(ctx, employee.ID), e.ErrNotFound)
}

// TestCountActiveEmployees verifies the source-of-truth membership query:
// only active members of the given department count.
func TestCountActiveEmployees(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	companyID := uuid.New()
	deptA := uuid.New()
	deptB := uuid.New()

	require.NoError(t, repo.CreateEmployee(ctx, newEmployee(companyID, "A1", &deptA, true)))
	require.NoError(t, repo.CreateEmployee(ctx, newEmployee(companyID, "A2", &deptA, true)))
	require.NoError(t, repo.CreateEmployee(ctx, newEmployee(companyID, "A3 inactive", &deptA, false)))
	require.NoError(t, repo.CreateEmployee(ctx, newEmployee(companyID, "B1", &deptB, true)))
	require.NoError(t, repo.CreateEmployee(ctx, newEmployee(companyID, "Unassigned", nil, true)))

	count, err := repo.CountActiveEmployees(ctx, deptA)
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.CountActiveEmployees(ctx, deptB)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDepartmentScoping(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	department := &models.Department{
		ID:        uuid.New(),
		CompanyID: uuid.New(),
		Name:      "Archive",
		Active:    false,
	}
	require.NoError(t, repo.CreateDepartment(ctx, department))

	_, err := repo.GetDepartment(ctx, department.ID)
	assert.ErrorIs(t, err, e.ErrNotFound)

	got, err := repo.GetDepartmentIncludingInactive(ctx, department.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Archive", got.Name)
}

func TestDepartmentExistsByName(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	companyID := uuid.New()

	exists, err := repo.DepartmentExistsByName(ctx, companyID, "Engineering")
	assert.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.CreateDepartment(ctx, &models.Department{
		ID:        uuid.New(),
		CompanyID: companyID,
		Name:      "Engineering",
		Active:    true,
	}))

	exists, err = repo.DepartmentExistsByName(ctx, companyID, "Engineering")
	assert.NoError(t, err)
	assert.True(t, exists)

	// Same name under another company does not collide.
	exists, err = repo.DepartmentExistsByName(ctx, uuid.New(), "Engineering")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestFindCompanyContact(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	companyID := uuid.New()

	_, err := repo.FindCompanyContact(ctx, companyID)
	assert.ErrorIs(t, err, e.ErrNotFound)

	person := &models.Contact{ID: uuid.New(), Name: "Just a person", CompanyID: &companyID, Active: true}
	require.NoError(t, repo.CreateContact(ctx, person))

	companyContact := &models.Contact{
		ID:        uuid.New(),
		Name:      "Acme Inc.",
		IsCompany: true,
		CompanyID: &companyID,
		Active:    true,
	}
	require.NoError(t, repo.CreateContact(ctx, companyContact))

	got, err := repo.FindCompanyContact(ctx, companyID)
	assert.NoError(t, err)
	assert.Equal(t, companyContact.ID, got.ID, "person contacts must not match")
}

func TestGetUserPreloadsContact(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	companyID := uuid.New()

	contact := &models.Contact{
		ID:        uuid.New(),
		Name:      "Sam",
		CompanyID: &companyID,
		Email:     "sam@example.com",
		Active:    true,
	}
	require.NoError(t, repo.CreateContact(ctx, contact))

	user := &models.User{ID: uuid.New(), Login: "sam", ContactID: &contact.ID}
	require.NoError(t, repo.CreateUser(ctx, user))

	got, err := repo.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Contact)
	assert.Equal(t, contact.ID, got.Contact.ID)
	assert.Equal(t, "sam@example.com", got.Contact.Email)
}

// TestWithTransactionCommitHooks verifies the after-commit contract: hooks
// run exactly once after a successful transaction and never after rollback.
func TestWithTransactionCommitHooks(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	ran := 0
	err := repo.WithTransaction(ctx, func(tx *Repository, hooks *CommitHooks) error {
		hooks.Defer(func(context.Context) { ran++ })
		return tx.CreateEmployee(ctx, newEmployee(uuid.New(), "Committed", nil, true))
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, ran, "hook should run after commit")

	boom := errors.New("boom")
	err = repo.WithTransaction(ctx, func(tx *Repository, hooks *CommitHooks) error {
		hooks.Defer(func(context.Context) { ran++ })
		if err := tx.CreateEmployee(ctx, newEmployee(uuid.New(), "Rolled back", nil, true)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ran, "hook must not run after rollback")
}

// TestWithTransactionRollback verifies writes inside a failed transaction
// are not visible afterwards.
func TestWithTransactionRollback(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	employee := newEmployee(uuid.New(), "Ghost", nil, true)
	err := repo.WithTransaction(ctx, func(tx *Repository, _ *CommitHooks) error {
		if err := tx.CreateEmployee(ctx, employee); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = repo.GetEmployeeIncludingInactive(ctx, employee.ID)
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestStatusHistoryOrder(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	employeeID := uuid.New()

	first := &models.EmployeeStatusHistory{
		ID:         uuid.New(),
		EmployeeID: employeeID,
		Status:     models.StatusActive,
		Reason:     "hired",
	}
	require.NoError(t, repo.CreateStatusHistory(ctx, first))

	second := &models.EmployeeStatusHistory{
		ID:         uuid.New(),
		EmployeeID: employeeID,
		Status:     models.StatusOnLeave,
		Reason:     "parental leave",
	}
	second.ChangedAt = first.ChangedAt.AddDate(0, 1, 0)
	require.NoError(t, repo.CreateStatusHistory(ctx, second))

	entries, err := repo.ListStatusHistory(ctx, employeeID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.StatusOnLeave, entries[0].Status, "most recent entry first")
}
