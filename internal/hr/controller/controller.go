// Package controller implements the core business logic (service layer)
// for employees and departments, orchestrating the write path explicitly:
// capture the pre-write snapshot, persist, provision the work contact after
// commit, then recompute the touched department counters.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gartstein/hr/internal/hr/db"
	e "github.com/gartstein/hr/internal/hr/errors"
	"github.com/gartstein/hr/internal/hr/events"
	"github.com/gartstein/hr/internal/hr/lifecycle"
	"github.com/gartstein/hr/internal/hr/metrics"
	"github.com/gartstein/hr/internal/hr/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventProducer interface {
	Produce(eventType events.EventType, employee *models.Employee)
}

// Repository defines the storage interface the services depend on.
// Transactional writes go through WithTransaction; hooks deferred inside it
// run only after the transaction commits.
type Repository interface {
	GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	GetEmployeeIncludingInactive(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	ListStatusHistory(ctx context.Context, employeeID uuid.UUID) ([]models.EmployeeStatusHistory, error)
	CreateDepartment(ctx context.Context, department *models.Department) error
	GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error)
	DeleteDepartment(ctx context.Context, id uuid.UUID) error
	DepartmentExistsByName(ctx context.Context, companyID uuid.UUID, name string) (bool, error)
	WithTransaction(ctx context.Context, fn func(tx *db.Repository, hooks *db.CommitHooks) error) error
}

// EmployeeService manages the employee lifecycle. Every write runs the same
// sequence: snapshot, persist, post-commit contact provisioning, counter
// recomputation, event.
type EmployeeService struct {
	repo        Repository
	provisioner *lifecycle.Provisioner
	recalc      *lifecycle.Recalculator
	producer    EventProducer
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewEmployeeService constructs an EmployeeService.
func NewEmployeeService(
	repo Repository,
	provisioner *lifecycle.Provisioner,
	recalc *lifecycle.Recalculator,
	producer EventProducer,
	logger *zap.Logger,
	m *metrics.Metrics,
) *EmployeeService {
	return &EmployeeService{
		repo:        repo,
		provisioner: provisioner,
		recalc:      recalc,
		producer:    producer,
		logger:      logger.Named("employee_service"),
		metrics:     m,
	}
}

// CreateEmployee inserts a new employee. Contact provisioning is deferred to
// the commit of the insert; the new department's counter is recomputed when
// the employee arrives active and assigned.
func (s *EmployeeService) CreateEmployee(ctx context.Context, employee *models.Employee) (*models.Employee, error) {
	if employee.Name == "" || len(employee.Name) > 255 {
		return nil, fmt.Errorf("%w: invalid name", e.ErrInvalidInput)
	}
	if employee.CompanyID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing company", e.ErrInvalidInput)
	}

	employee.ID = uuid.New()
	err := s.repo.WithTransaction(ctx, func(tx *db.Repository, hooks *db.CommitHooks) error {
		if err := tx.CreateEmployee(ctx, employee); err != nil {
			return err
		}
		hooks.Defer(s.provisionHook(employee.ID))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create employee: %w", err)
	}

	if employee.Active && employee.DepartmentID != nil {
		if err := s.recalc.Recompute(ctx, employee.DepartmentID); err != nil {
			return nil, fmt.Errorf("failed to recompute department counter: %w", err)
		}
	}

	s.metrics.EmployeeWrites.WithLabelValues("create").Inc()
	go func() {
		s.producer.Produce(events.EmployeeCreated, employee)
	}()
	return employee, nil
}

// GetEmployee retrieves an active employee by ID.
func (s *EmployeeService) GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	employee, err := s.repo.GetEmployee(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return employee, nil
}

// UpdateEmployee applies a partial update. The pre-write snapshot decides
// which department counters the update invalidated: both departments on a
// transfer, the current one on an active-flag flip.
func (s *EmployeeService) UpdateEmployee(ctx context.Context, update *models.EmployeeUpdate) (*models.Employee, error) {
	if update.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid employee ID", e.ErrInvalidInput)
	}
	if update.Name != nil && (*update.Name == "" || len(*update.Name) > 255) {
		return nil, fmt.Errorf("%w: invalid name", e.ErrInvalidInput)
	}

	snapshot, err := lifecycle.Capture(ctx, s.repo, update.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to capture prior state: %w", err)
	}

	err = s.repo.WithTransaction(ctx, func(tx *db.Repository, hooks *db.CommitHooks) error {
		if err := tx.UpdateEmployeeFields(ctx, update); err != nil {
			return err
		}
		hooks.Defer(s.provisionHook(update.ID))
		return nil
	})
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update employee: %w", err)
	}

	updated, err := s.repo.GetEmployeeIncludingInactive(ctx, update.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload employee: %w", err)
	}

	if err := s.recalc.Recompute(ctx, snapshot.TouchedDepartments(updated)...); err != nil {
		return nil, fmt.Errorf("failed to recompute department counters: %w", err)
	}

	s.metrics.EmployeeWrites.WithLabelValues("update").Inc()
	go func() {
		s.producer.Produce(events.EmployeeUpdated, updated)
	}()
	return updated, nil
}

// DeleteEmployee removes an employee and repairs the counter of the
// department it belonged to at delete time.
func (s *EmployeeService) DeleteEmployee(ctx context.Context, id uuid.UUID) error {
	employee, err := s.repo.GetEmployeeIncludingInactive(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to get employee for deletion: %w", err)
	}

	err = s.repo.WithTransaction(ctx, func(tx *db.Repository, _ *db.CommitHooks) error {
		return tx.DeleteEmployee(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}

	if employee.DepartmentID != nil {
		if err := s.recalc.Recompute(ctx, employee.DepartmentID); err != nil {
			return fmt.Errorf("failed to recompute department counter: %w", err)
		}
	}

	s.metrics.EmployeeWrites.WithLabelValues("delete").Inc()
	go func() {
		s.producer.Produce(events.EmployeeDeleted, employee)
	}()
	return nil
}

// ChangeEmployeeStatus is the official way to move an employee between
// lifecycle statuses. It appends an audit record and syncs the active flag
// in one transaction, then flows through the usual counter repair.
// changedBy identifies the acting user; nil marks a system-driven change.
func (s *EmployeeService) ChangeEmployeeStatus(
	ctx context.Context,
	employeeID uuid.UUID,
	status models.EmployeeStatus,
	changedBy *uuid.UUID,
	reason, note string,
) (*models.Employee, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", e.ErrInvalidInput, status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a reason is required to change employee status", e.ErrInvalidInput)
	}

	employee, err := s.repo.GetEmployeeIncludingInactive(ctx, employeeID)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	history, err := s.repo.ListStatusHistory(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}
	if len(history) > 0 && history[0].Status == status {
		// No-op transition.
		return employee, nil
	}

	active := employee.Active
	snapshot := lifecycle.Snapshot{
		Exists:       true,
		DepartmentID: employee.DepartmentID,
		Active:       &active,
	}

	newActive := status.IsActiveFlag()
	err = s.repo.WithTransaction(ctx, func(tx *db.Repository, hooks *db.CommitHooks) error {
		entry := &models.EmployeeStatusHistory{
			ID:          uuid.New(),
			EmployeeID:  employeeID,
			Status:      status,
			Reason:      reason,
			Note:        strings.TrimSpace(note),
			ChangedByID: changedBy,
			ChangedAt:   time.Now().UTC(),
		}
		if err := tx.CreateStatusHistory(ctx, entry); err != nil {
			return err
		}
		if err := tx.UpdateEmployeeFields(ctx, &models.EmployeeUpdate{
			ID:     employeeID,
			Active: &newActive,
		}); err != nil {
			return err
		}
		hooks.Defer(s.provisionHook(employeeID))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to change employee status: %w", err)
	}

	updated, err := s.repo.GetEmployeeIncludingInactive(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload employee: %w", err)
	}

	if err := s.recalc.Recompute(ctx, snapshot.TouchedDepartments(updated)...); err != nil {
		return nil, fmt.Errorf("failed to recompute department counters: %w", err)
	}

	s.metrics.EmployeeWrites.WithLabelValues("status_change").Inc()
	go func() {
		s.producer.Produce(events.EmployeeUpdated, updated)
	}()
	return updated, nil
}

// provisionHook wraps contact provisioning for post-commit execution. The
// employee write has already committed when it runs, so failures are logged,
// never propagated.
func (s *EmployeeService) provisionHook(employeeID uuid.UUID) func(context.Context) {
	return func(ctx context.Context) {
		if err := s.provisioner.EnsureWorkContact(ctx, employeeID); err != nil {
			s.logger.Error("Failed to provision work contact",
				zap.Error(err),
				zap.String("employee_id", employeeID.String()),
			)
		}
	}
}

// DepartmentService manages departments and exposes an explicit counter
// repair operation.
type DepartmentService struct {
	repo   Repository
	recalc *lifecycle.Recalculator
	logger *zap.Logger
}

// NewDepartmentService constructs a DepartmentService.
func NewDepartmentService(repo Repository, recalc *lifecycle.Recalculator, logger *zap.Logger) *DepartmentService {
	return &DepartmentService{
		repo:   repo,
		recalc: recalc,
		logger: logger.Named("department_service"),
	}
}

// CreateDepartment adds a department after checking name uniqueness within
// the company.
func (s *DepartmentService) CreateDepartment(ctx context.Context, department *models.Department) (*models.Department, error) {
	if department.Name == "" || len(department.Name) > 255 {
		return nil, fmt.Errorf("%w: invalid name", e.ErrInvalidInput)
	}
	if department.CompanyID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing company", e.ErrInvalidInput)
	}

	exists, err := s.repo.DepartmentExistsByName(ctx, department.CompanyID, department.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check name existence: %w", err)
	}
	if exists {
		return nil, e.ErrDuplicateName
	}

	department.ID = uuid.New()
	err = s.repo.WithTransaction(ctx, func(tx *db.Repository, _ *db.CommitHooks) error {
		return tx.CreateDepartment(ctx, department)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create department: %w", err)
	}
	return department, nil
}

// GetDepartment retrieves an active department by ID.
func (s *DepartmentService) GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	department, err := s.repo.GetDepartment(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return department, nil
}

// DeleteDepartment removes a department by ID.
func (s *DepartmentService) DeleteDepartment(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteDepartment(ctx, id); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete department: %w", err)
	}
	return nil
}

// RecountDepartment recomputes a department's cached member count from the
// live membership query.
func (s *DepartmentService) RecountDepartment(ctx context.Context, id uuid.UUID) error {
	return s.recalc.Recompute(ctx, &id)
}
