package lifecycle

import (
	"context"
	"errors"
	"fmt"

	e "github.com/gartstein/hr/internal/hr/errors"
	"github.com/gartstein/hr/internal/hr/metrics"
	"github.com/gartstein/hr/internal/hr/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContactStore is the store access the Provisioner needs.
type ContactStore interface {
	GetEmployeeIncludingInactive(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	UpdateEmployeeFields(ctx context.Context, update *models.EmployeeUpdate) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindCompanyContact(ctx context.Context, companyID uuid.UUID) (*models.Contact, error)
	CreateContact(ctx context.Context, contact *models.Contact) error
	UpdateContactFields(ctx context.Context, update *models.ContactUpdate) error
}

// Provisioner guarantees that every employee ends up with a work contact.
// It runs after the employee write has committed, so its failures are
// reported to the caller for logging but never roll anything back.
type Provisioner struct {
	store   ContactStore
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewProvisioner constructs a Provisioner.
func NewProvisioner(store ContactStore, logger *zap.Logger, m *metrics.Metrics) *Provisioner {
	return &Provisioner{
		store:   store,
		logger:  logger.Named("contact_provisioner"),
		metrics: m,
	}
}

// EnsureWorkContact links a contact to the employee:
//
//   - employee already has a contact: no-op, repeated runs never mutate it
//   - employee linked to a user with a contact: reuse it, correcting its
//     company in place when it differs from the employee's
//   - otherwise: create a person contact named after the employee, parented
//     under the company's company-type contact when one exists
//
// In both non-trivial branches the contact is assigned to the employee and
// empty work email/phone are backfilled from it, persisting only the fields
// that changed.
func (p *Provisioner) EnsureWorkContact(ctx context.Context, employeeID uuid.UUID) error {
	employee, err := p.store.GetEmployeeIncludingInactive(ctx, employeeID)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			// Deleted between commit and provisioning; nothing to do.
			return nil
		}
		p.metrics.Provisions.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to load employee: %w", err)
	}

	if employee.ContactID != nil {
		p.metrics.Provisions.WithLabelValues("skipped").Inc()
		return nil
	}

	contact, outcome, err := p.resolveContact(ctx, employee)
	if err != nil {
		p.metrics.Provisions.WithLabelValues("failed").Inc()
		return err
	}

	if err := p.assign(ctx, employee, contact); err != nil {
		p.metrics.Provisions.WithLabelValues("failed").Inc()
		return err
	}

	p.metrics.Provisions.WithLabelValues(outcome).Inc()
	p.logger.Info("work contact provisioned",
		zap.String("employee_id", employee.ID.String()),
		zap.String("contact_id", contact.ID.String()),
		zap.String("outcome", outcome),
	)
	return nil
}

// resolveContact picks the user's contact when there is one, otherwise
// creates a fresh person contact under the company contact.
func (p *Provisioner) resolveContact(ctx context.Context, employee *models.Employee) (*models.Contact, string, error) {
	if employee.UserID != nil {
		user, err := p.store.GetUser(ctx, *employee.UserID)
		if err != nil && !errors.Is(err, e.ErrNotFound) {
			return nil, "", fmt.Errorf("failed to load user: %w", err)
		}
		if err == nil && user.Contact != nil {
			contact := user.Contact
			if contact.CompanyID == nil || *contact.CompanyID != employee.CompanyID {
				err = p.store.UpdateContactFields(ctx, &models.ContactUpdate{
					ID:        contact.ID,
					CompanyID: &uuid.NullUUID{UUID: employee.CompanyID, Valid: true},
				})
				if err != nil {
					return nil, "", fmt.Errorf("failed to correct contact company: %w", err)
				}
				companyID := employee.CompanyID
				contact.CompanyID = &companyID
			}
			return contact, "reused", nil
		}
	}

	var parentID *uuid.UUID
	parent, err := p.store.FindCompanyContact(ctx, employee.CompanyID)
	switch {
	case err == nil:
		parentID = &parent.ID
	case errors.Is(err, e.ErrNotFound):
		// Degraded but valid: the contact is created without a parent.
		p.logger.Warn("company has no company-type contact",
			zap.String("company_id", employee.CompanyID.String()),
		)
	default:
		return nil, "", fmt.Errorf("failed to look up company contact: %w", err)
	}

	companyID := employee.CompanyID
	contact := &models.Contact{
		ID:        uuid.New(),
		Name:      employee.Name,
		IsCompany: false,
		CompanyID: &companyID,
		ParentID:  parentID,
		Employee:  true,
		Active:    true,
	}
	if err := p.store.CreateContact(ctx, contact); err != nil {
		return nil, "", fmt.Errorf("failed to create contact: %w", err)
	}
	return contact, "created", nil
}

func (p *Provisioner) assign(ctx context.Context, employee *models.Employee, contact *models.Contact) error {
	update := &models.EmployeeUpdate{
		ID:        employee.ID,
		ContactID: &uuid.NullUUID{UUID: contact.ID, Valid: true},
	}
	if employee.WorkEmail == "" && contact.Email != "" {
		update.WorkEmail = &contact.Email
	}
	if employee.WorkPhone == "" && contact.Phone != "" {
		update.WorkPhone = &contact.Phone
	}
	if err := p.store.UpdateEmployeeFields(ctx, update); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to assign contact: %w", err)
	}
	return nil
}
