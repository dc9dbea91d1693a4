package lifecycle

import (
	"context"
	"testing"

	"github.com/gartstein/hr/internal/hr/db"
	"github.com/gartstein/hr/internal/hr/metrics"
	"github.com/gartstein/hr/internal/hr/models"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newProvisioner(t *testing.T, repo *db.Repository) *Provisioner {
	t.Helper()
	return NewProvisioner(repo, zaptest.NewLogger(t), metrics.NewMetrics(prometheus.NewRegistry()))
}

// TestProvisionReusesUserContact: an employee linked to a user with a
// contact gets that contact, and the contact's company is corrected in
// place when it belongs to another company.
func TestProvisionReusesUserContact(t *testing.T) {
	repo := setupRepo(t)
	provisioner := newProvisioner(t, repo)
	ctx := context.Background()

	otherCompanyID := uuid.New()
	employeeCompanyID := uuid.New()

	contact := &models.Contact{
		ID:        uuid.New(),
		Name:      "Nour",
		CompanyID: &otherCompanyID,
		Email:     "nour@example.com",
		Phone:     "+1 555 0199",
		Active:    true,
	}
	require.NoError(t, repo.CreateContact(ctx, contact))

	user := &models.User{ID: uuid.New(), Login: "nour", ContactID: &contact.ID}
	require.NoError(t, repo.CreateUser(ctx, user))

	employee := &models.Employee{
		ID:        uuid.New(),
		CompanyID: employeeCompanyID,
		Name:      "Nour",
		UserID:    &user.ID,
		Active:    true,
	}
	require.NoError(t, repo.CreateEmployee(ctx, employee))

	require.NoError(t, provisioner.EnsureWorkContact(ctx, employee.ID))

	got, err := repo.GetEmployeeIncludingInactive(ctx, employee.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ContactID)
	assert.Equal(t, contact.ID, *got.ContactID, "user's contact is reused, not copied")
	assert.Equal(t, "nour@example.com", got.WorkEmail, "empty work email is backfilled")
	assert.Equal(t, "+1 555 0199", got.WorkPhone, "empty work phone is backfilled")

	corrected, err := repo.GetContact(ctx, contact.ID)
	require.NoError(t, err)
	require.NotNil(t, corrected.CompanyID)
	assert.Equal(t, employeeCompanyID, *corrected.CompanyID, "contact company corrected to the employee's")
}

// TestProvisionCreatesContactUnderCompany: without a usable user contact a
// fresh person contact is created, parented under the company contact and
// flagged as employee.
func TestProvisionCreatesContactUnderCompany(t *testing.T) {
	repo := setupRepo(t)
	provisioner := newProvisioner(t, repo)
	ctx := context.Background()

	companyID := uuid.New()
	companyContact := &models.Contact{
		ID:        uuid.New(),
		Name:      "Acme Inc.",
		IsCompany: true,
		CompanyID: &companyID,
		Active:    true,
	}
	require.NoError(t, repo.CreateContact(ctx, companyContact))

	employee := &models.Employee{
		ID:        uuid.New(),
		CompanyID: companyID,
		Name:      "Rami",
		Active:    true,
	}
	require.NoError(t, repo.CreateEmployee(ctx, employee))

	require.NoError(t, provisioner.EnsureWorkContact(ctx, employee.ID))

	got, err := repo.GetEmployeeIncludingInactive(ctx, employee.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ContactID)

	contact, err := repo.GetContact(ctx, *got.ContactID)
	require.NoError(t, err)
	assert.Equal(t, "Rami", contact.Name)
	assert.False(t, contact.IsCompany)
	assert.True(t, contact.Employee)
	require.NotNil(t, contact.ParentID)
	assert.Equal(t, companyContact.ID, *contact.ParentID)
	require.NotNil(t, contact.CompanyID)
	assert.Equal(t, companyID, *contact.CompanyID)
}

// TestProvisionWithoutCompanyContact: no company contact is a degraded but
// valid case, the new contact simply has no parent.
func TestProvisionWithoutCompanyContact(t *testing.T) {
	repo := setupRepo(t)
	provisioner := newProvisioner(t, repo)
	ctx := context.Background()

	employee := &models.Employee{
		ID:        uuid.New(),
		CompanyID: uuid.New(),
		Name:      "Selin",
		WorkEmail: "selin@corp.example", // pre-set, must not be overwritten
		Active:    true,
	}
	require.NoError(t, repo.CreateEmployee(ctx, employee))

	require.NoError(t, provisioner.EnsureWorkContact(ctx, employee.ID))

	got, err := repo.GetEmployeeIncludingInactive(ctx, employee.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ContactID)

	contact, err := repo.GetContact(ctx, *got.ContactID)
	require.NoError(t, err)
	assert.Nil(t, contact.ParentID)
	assert.True(t, contact.Employee)
	assert.Equal(t, "selin@corp.example", got.WorkEmail, "existing work email kept")
}

// TestProvisionIsIdempotent: a second run on an employee that already has a
// contact changes nothing.
func TestProvisionIsIdempotent(t *testing.T) {
	repo := setupRepo(t)
	provisioner := newProvisioner(t, repo)
	ctx := context.Background()

	employee := &models.Employee{
		ID:        uuid.New(),
		CompanyID: uuid.New(),
		Name:      "Ada",
		Active:    true,
	}
	require.NoError(t, repo.CreateEmployee(ctx, employee))

	require.NoError(t, provisioner.EnsureWorkContact(ctx, employee.ID))

	first, err := repo.GetEmployeeIncludingInactive(ctx, employee.ID)
	require.NoError(t, err)
	require.NotNil(t, first.ContactID)

	require.NoError(t, provisioner.EnsureWorkContact(ctx, employee.ID))

	second, err := repo.GetEmployeeIncludingInactive(ctx, employee.ID)
	require.NoError(t, err)
	require.NotNil(t, second.ContactID)
	assert.Equal(t, *first.ContactID, *second.ContactID)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt, "second run must not touch the employee")
}

// TestProvisionMissingEmployee: an employee deleted between commit and
// provisioning is tolerated.
func TestProvisionMissingEmployee(t *testing.T) {
	repo := setupRepo(t)
	provisioner := newProvisioner(t, repo)

	assert.NoError(t, provisioner.EnsureWorkContact(context.Background(), uuid.New()))
}

// TestProvisionUserWithoutContact: a linked user that has no contact falls
// through to the create branch.
func TestProvisionUserWithoutContact(t *testing.T) {
	repo := setupRepo(t)
	provisioner := newProvisioner(t, repo)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Login: "bare"}
	require.NoError(t, repo.CreateUser(ctx, user))

	employee := &models.Employee{
		ID:        uuid.New(),
		CompanyID: uuid.New(),
		Name:      "Bare User",
		UserID:    &user.ID,
		Active:    true,
	}
	require.NoError(t, repo.CreateEmployee(ctx, employee))

	require.NoError(t, provisioner.EnsureWorkContact(ctx, employee.ID))

	got, err := repo.GetEmployeeIncludingInactive(ctx, employee.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ContactID)

	contact, err := repo.GetContact(ctx, *got.ContactID)
	require.NoError(t, err)
	assert.True(t, contact.Employee)
	assert.Equal(t, "Bare User", contact.Name)
}
