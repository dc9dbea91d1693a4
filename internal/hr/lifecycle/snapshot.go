// Package lifecycle implements the consistency rules that run around every
// employee write: the pre-write snapshot, work-contact provisioning and
// department counter recomputation.
package lifecycle

import (
	"context"
	"errors"

	e "github.com/gartstein/hr/internal/hr/errors"
	"github.com/gartstein/hr/internal/hr/models"
	"github.com/google/uuid"
)

// Snapshot captures an employee's department and active flag as persisted
// immediately before a write. It is threaded through the save operation as a
// value; a zero Snapshot means "no prior record" and is what a create, or an
// update racing a delete, starts from.
type Snapshot struct {
	Exists       bool
	DepartmentID *uuid.UUID
	Active       *bool
}

// SnapshotStore is the read access Capture needs.
type SnapshotStore interface {
	GetEmployeeIncludingInactive(ctx context.Context, id uuid.UUID) (*models.Employee, error)
}

// Capture reads the persisted state of an employee, bypassing the active-only
// scope since the prior state may be inactive. A missing record yields an
// unset snapshot, not an error.
func Capture(ctx context.Context, store SnapshotStore, id uuid.UUID) (Snapshot, error) {
	employee, err := store.GetEmployeeIncludingInactive(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return Snapshot{}, nil
		}
		return Snapshot{}, err
	}
	active := employee.Active
	return Snapshot{
		Exists:       true,
		DepartmentID: employee.DepartmentID,
		Active:       &active,
	}, nil
}

// TouchedDepartments returns the departments whose cached counts must be
// recomputed after writing employee, given the pre-write snapshot:
//
//   - new employee, active and assigned: the new department
//   - department changed: both old and new
//   - active flag changed: the current department
//
// Duplicates and nils are filtered out by Recompute.
func (s Snapshot) TouchedDepartments(employee *models.Employee) []*uuid.UUID {
	var touched []*uuid.UUID

	if !s.Exists {
		if employee.Active && employee.DepartmentID != nil {
			touched = append(touched, employee.DepartmentID)
		}
		return touched
	}

	if !sameDepartment(s.DepartmentID, employee.DepartmentID) {
		touched = append(touched, s.DepartmentID, employee.DepartmentID)
	} else if s.Active != nil && *s.Active != employee.Active {
		touched = append(touched, employee.DepartmentID)
	}
	return touched
}

func sameDepartment(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
