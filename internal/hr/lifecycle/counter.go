package lifecycle

import (
	"context"
	"errors"

	e "github.com/gartstein/hr/internal/hr/errors"
	"github.com/gartstein/hr/internal/hr/metrics"
	"github.com/gartstein/hr/internal/hr/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DepartmentStore is the store access the Recalculator needs.
type DepartmentStore interface {
	GetDepartmentIncludingInactive(ctx context.Context, id uuid.UUID) (*models.Department, error)
	CountActiveEmployees(ctx context.Context, departmentID uuid.UUID) (int, error)
	UpdateDepartmentFields(ctx context.Context, update *models.DepartmentUpdate) error
}

// Recalculator keeps Department.TotalEmployee in line with the live
// active-member count. It always recomputes from the membership query and
// writes conditionally, so repeated or out-of-order invocations converge on
// the same value. The counter remains a best-effort cache: no locking is
// taken around the read-then-write, and two concurrent recomputes of the
// same department may transiently undercount until the next write repairs it.
type Recalculator struct {
	store   DepartmentStore
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRecalculator constructs a Recalculator.
func NewRecalculator(store DepartmentStore, logger *zap.Logger, m *metrics.Metrics) *Recalculator {
	return &Recalculator{
		store:   store,
		logger:  logger.Named("department_counter"),
		metrics: m,
	}
}

// Recompute refreshes the cached counts of the given departments. Nil ids
// are ignored and duplicates are recomputed once. A department that has
// vanished is skipped silently; store failures on the surviving ones are
// returned after all departments have been attempted.
func (r *Recalculator) Recompute(ctx context.Context, departmentIDs ...*uuid.UUID) error {
	seen := make(map[uuid.UUID]bool, len(departmentIDs))
	var firstErr error
	for _, id := range departmentIDs {
		if id == nil || seen[*id] {
			continue
		}
		seen[*id] = true
		if err := r.recomputeOne(ctx, *id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Recalculator) recomputeOne(ctx context.Context, id uuid.UUID) error {
	department, err := r.store.GetDepartmentIncludingInactive(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			// Deleted concurrently; nothing left to repair.
			r.metrics.Recounts.WithLabelValues("missing").Inc()
			return nil
		}
		return err
	}

	total, err := r.store.CountActiveEmployees(ctx, id)
	if err != nil {
		return err
	}

	if total == department.TotalEmployee {
		r.metrics.Recounts.WithLabelValues("unchanged").Inc()
		return nil
	}

	err = r.store.UpdateDepartmentFields(ctx, &models.DepartmentUpdate{
		ID:            id,
		TotalEmployee: &total,
	})
	if err != nil {
		return err
	}

	r.metrics.Recounts.WithLabelValues("updated").Inc()
	r.logger.Debug("department counter updated",
		zap.String("department_id", id.String()),
		zap.Int("previous", department.TotalEmployee),
		zap.Int("total", total),
	)
	return nil
}
