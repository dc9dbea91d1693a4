// Package db implements the GORM-backed repository for the HR service.
// Reads are scoped to active records by default; the *IncludingInactive
// variants bypass that scope and are the ones the lifecycle rules use.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	e "github.com/gartstein/hr/internal/hr/errors"
	"github.com/gartstein/hr/internal/hr/metrics"
	"github.com/gartstein/hr/internal/hr/models"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Repository struct {
	db      *gorm.DB
	metrics *metrics.Metrics
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// CommitHooks collects functions to run once the enclosing transaction has
// committed. When WithTransaction is not involved the hooks run immediately
// after the write, which satisfies the "after commit, or immediately if no
// transaction" contract.
type CommitHooks struct {
	fns []func(context.Context)
}

// Defer schedules fn to run after the transaction commits. Hooks scheduled
// in a transaction that rolls back are discarded.
func (h *CommitHooks) Defer(fn func(context.Context)) {
	h.fns = append(h.fns, fn)
}

func (h *CommitHooks) run(ctx context.Context) {
	for _, fn := range h.fns {
		fn(ctx)
	}
}

// NewRepository connects to Postgres, retrying with exponential backoff
// until the database is reachable, and migrates the schema.
func NewRepository(cfg *Config, m *metrics.Metrics) (*Repository, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var db *gorm.DB
	connect := func() error {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		return err
	}
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db, metrics: m}, nil
}

// NewSQLiteRepository opens an embedded SQLite database and migrates the
// schema. Tests and local tooling use this; the production path is
// NewRepository.
func NewSQLiteRepository(dsn string, m *metrics.Metrics) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Repository{db: db, metrics: m}, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Company{},
		&models.Contact{},
		&models.User{},
		&models.Department{},
		&models.Employee{},
		&models.EmployeeStatusHistory{},
	)
}

// observe times a query for the DBQueryDuration histogram. Call it at the
// top of an operation and defer the returned func.
func (r *Repository) observe(queryType string) func() {
	start := time.Now()
	return func() {
		r.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(start).Seconds())
	}
}

// WithTransaction runs fn inside a database transaction. Hooks deferred by
// fn run after the transaction commits; they are dropped on rollback.
func (r *Repository) WithTransaction(ctx context.Context, fn func(tx *Repository, hooks *CommitHooks) error) error {
	hooks := &CommitHooks{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx, metrics: r.metrics}, hooks)
	})
	if err != nil {
		return err
	}
	hooks.run(ctx)
	return nil
}

// --- Employees ---

func (r *Repository) CreateEmployee(ctx context.Context, employee *models.Employee) error {
	defer r.observe("create_employee")()
	result := r.db.WithContext(ctx).Create(employee)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrDuplicateName
		}
		return result.Error
	}
	return nil
}

// GetEmployee retrieves an active employee by ID.
func (r *Repository) GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	defer r.observe("get_employee")()
	var employee models.Employee
	result := r.db.WithContext(ctx).Where("active = ?", true).First(&employee, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &employee, nil
}

// GetEmployeeIncludingInactive retrieves an employee regardless of the
// active flag. Lifecycle snapshots and provisioning must use this form:
// the prior state of a record being written may well be inactive.
func (r *Repository) GetEmployeeIncludingInactive(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	defer r.observe("get_employee_unscoped")()
	var employee models.Employee
	result := r.db.WithContext(ctx).First(&employee, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &employee, nil
}

// UpdateEmployeeFields applies a partial update, touching only the fields
// set on the update struct. A no-field update is a no-op, not an error.
func (r *Repository) UpdateEmployeeFields(ctx context.Context, update *models.EmployeeUpdate) error {
	fields := employeeUpdateFields(update)
	if len(fields) == 0 {
		return nil
	}
	defer r.observe("update_employee")()
	result := r.db.WithContext(ctx).Model(&models.Employee{}).
		Where("id = ?", update.ID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteEmployee(ctx context.Context, id uuid.UUID) error {
	defer r.observe("delete_employee")()
	result := r.db.WithContext(ctx).Delete(&models.Employee{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// CountActiveEmployees counts the active members of a department. This is
// the source-of-truth query behind Department.TotalEmployee.
func (r *Repository) CountActiveEmployees(ctx context.Context, departmentID uuid.UUID) (int, error) {
	defer r.observe("count_active_employees")()
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Employee{}).
		Where("department_id = ? AND active = ?", departmentID, true).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(count), nil
}

// --- Departments ---

func (r *Repository) CreateDepartment(ctx context.Context, department *models.Department) error {
	defer r.observe("create_department")()
	result := r.db.WithContext(ctx).Create(department)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrDuplicateName
		}
		return result.Error
	}
	return nil
}

// GetDepartment retrieves an active department by ID.
func (r *Repository) GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	defer r.observe("get_department")()
	var department models.Department
	result := r.db.WithContext(ctx).Where("active = ?", true).First(&department, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &department, nil
}

// GetDepartmentIncludingInactive retrieves a department regardless of the
// active flag. Counter recomputation uses this form so that deactivated
// departments still get their cache repaired.
func (r *Repository) GetDepartmentIncludingInactive(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	defer r.observe("get_department_unscoped")()
	var department models.Department
	result := r.db.WithContext(ctx).First(&department, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &department, nil
}

func (r *Repository) UpdateDepartmentFields(ctx context.Context, update *models.DepartmentUpdate) error {
	fields := departmentUpdateFields(update)
	if len(fields) == 0 {
		return nil
	}
	defer r.observe("update_department")()
	result := r.db.WithContext(ctx).Model(&models.Department{}).
		Where("id = ?", update.ID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteDepartment(ctx context.Context, id uuid.UUID) error {
	defer r.observe("delete_department")()
	result := r.db.WithContext(ctx).Delete(&models.Department{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func (r *Repository) DepartmentExistsByName(ctx context.Context, companyID uuid.UUID, name string) (bool, error) {
	defer r.observe("department_exists_by_name")()
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Department{}).
		Where("company_id = ? AND name = ?", companyID, name).
		Limit(1).
		Count(&count)
	return count > 0, result.Error
}

// --- Contacts ---

func (r *Repository) CreateContact(ctx context.Context, contact *models.Contact) error {
	defer r.observe("create_contact")()
	result := r.db.WithContext(ctx).Create(contact)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (r *Repository) GetContact(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	defer r.observe("get_contact")()
	var contact models.Contact
	result := r.db.WithContext(ctx).First(&contact, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &contact, nil
}

// FindCompanyContact returns the first company-type contact of a company,
// or ErrNotFound when the company has none.
func (r *Repository) FindCompanyContact(ctx context.Context, companyID uuid.UUID) (*models.Contact, error) {
	defer r.observe("find_company_contact")()
	var contact models.Contact
	result := r.db.WithContext(ctx).
		Where("company_id = ? AND is_company = ?", companyID, true).
		Order("created_at").
		First(&contact)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &contact, nil
}

func (r *Repository) UpdateContactFields(ctx context.Context, update *models.ContactUpdate) error {
	fields := contactUpdateFields(update)
	if len(fields) == 0 {
		return nil
	}
	defer r.observe("update_contact")()
	result := r.db.WithContext(ctx).Model(&models.Contact{}).
		Where("id = ?", update.ID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// --- Users ---

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	defer r.observe("create_user")()
	result := r.db.WithContext(ctx).Create(user)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

// GetUser retrieves a user with its contact preloaded.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	defer r.observe("get_user")()
	var user models.User
	result := r.db.WithContext(ctx).Preload("Contact").First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// --- Companies ---

func (r *Repository) CreateCompany(ctx context.Context, company *models.Company) error {
	defer r.observe("create_company")()
	result := r.db.WithContext(ctx).Create(company)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrDuplicateName
		}
		return result.Error
	}
	return nil
}

// --- Status history ---

func (r *Repository) CreateStatusHistory(ctx context.Context, entry *models.EmployeeStatusHistory) error {
	defer r.observe("create_status_history")()
	result := r.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

// ListStatusHistory returns an employee's status changes, most recent first.
func (r *Repository) ListStatusHistory(ctx context.Context, employeeID uuid.UUID) ([]models.EmployeeStatusHistory, error) {
	defer r.observe("list_status_history")()
	var entries []models.EmployeeStatusHistory
	result := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("changed_at DESC").
		Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	return entries, nil
}

// Ping verifies database connectivity, for health checks.
func (r *Repository) Ping(ctx context.Context) error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
