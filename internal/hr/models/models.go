// Package models defines the core domain entities for the HR service:
// Employee, Department, Contact, User and their partial-update structs.
// The structs are mapped directly with GORM; partial updates use pointer
// fields so that unset fields are left untouched.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Company represents the employing legal entity. Employees, departments
// and contacts all hang off a company.
type Company struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:255;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User is an account that an employee may be linked to. A user may carry
// its own contact record, which provisioning reuses for the employee.
type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Login     string     `gorm:"size:128;uniqueIndex"`
	ContactID *uuid.UUID `gorm:"type:uuid"`
	Contact   *Contact   `gorm:"foreignKey:ContactID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contact is an address-book record, distinct from Employee. Companies and
// persons share the table; a person contact may be parented under its
// company's company-type contact.
type Contact struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`
	// Name is the display name of the person or company.
	Name string `gorm:"size:255;index"`
	// IsCompany marks the company-type contact of a company.
	IsCompany bool
	CompanyID *uuid.UUID `gorm:"type:uuid;index"`
	// ParentID links a person contact to its company-level contact.
	ParentID *uuid.UUID `gorm:"type:uuid"`
	Email    string     `gorm:"size:255"`
	Phone    string     `gorm:"size:64"`
	// Employee flags a contact that was provisioned for an employee.
	Employee  bool
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Department groups employees within a company. TotalEmployee is a cached
// count of active members; the live membership query is the source of truth
// and the cache is reconciled after every employee write that touches it.
type Department struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:uuid;index"`
	Name      string    `gorm:"size:255"`
	// TotalEmployee caches count(members where active=true).
	TotalEmployee int `gorm:"check:total_employee >= 0"`
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Employee is the central entity of the service.
type Employee struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:uuid;index"`
	Name      string    `gorm:"size:255;index"`
	// UserID optionally links the employee to an account.
	UserID *uuid.UUID `gorm:"type:uuid"`
	// DepartmentID is nullable: an employee may be unassigned.
	DepartmentID *uuid.UUID `gorm:"type:uuid;index"`
	// ContactID is set by contact provisioning after the creating
	// transaction commits; it is never overwritten once set.
	ContactID *uuid.UUID `gorm:"type:uuid"`
	// WorkEmail and WorkPhone are derived: backfilled from the linked
	// contact when empty.
	WorkEmail string `gorm:"size:255"`
	WorkPhone string `gorm:"size:64"`
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmployeeStatus is a lifecycle status an employee can be moved to.
type EmployeeStatus string

const (
	StatusActive    EmployeeStatus = "ACTIVE"
	StatusOnLeave   EmployeeStatus = "ON_LEAVE"
	StatusSuspended EmployeeStatus = "SUSPENDED"
	StatusArchived  EmployeeStatus = "ARCHIVED"
)

// IsActiveFlag reports whether employees in this status count as active
// department members.
func (s EmployeeStatus) IsActiveFlag() bool {
	return s == StatusActive
}

// Valid reports whether s is a known status value.
func (s EmployeeStatus) Valid() bool {
	switch s {
	case StatusActive, StatusOnLeave, StatusSuspended, StatusArchived:
		return true
	}
	return false
}

// EmployeeStatusHistory is an append-only audit record of status changes.
type EmployeeStatusHistory struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	EmployeeID uuid.UUID `gorm:"type:uuid;index"`
	Status     EmployeeStatus
	Reason     string `gorm:"size:512"`
	Note       string `gorm:"size:2048"`
	// ChangedByID records the acting user when the change came from one;
	// system-driven changes leave it nil.
	ChangedByID *uuid.UUID `gorm:"type:uuid"`
	ChangedAt   time.Time
}

// EmployeeUpdate represents the fields that can be updated for an Employee.
// Pointer types are used to allow partial updates; NullUUID pointers
// distinguish "set to this id", "clear" and "leave untouched".
type EmployeeUpdate struct {
	// ID is the unique identifier of the employee to update.
	ID           uuid.UUID
	Name         *string
	UserID       *uuid.NullUUID
	DepartmentID *uuid.NullUUID
	ContactID    *uuid.NullUUID
	WorkEmail    *string
	WorkPhone    *string
	Active       *bool
}

// DepartmentUpdate represents the fields that can be updated for a Department.
type DepartmentUpdate struct {
	ID            uuid.UUID
	Name          *string
	TotalEmployee *int
	Active        *bool
}

// ContactUpdate represents the fields that can be updated for a Contact.
type ContactUpdate struct {
	ID        uuid.UUID
	Name      *string
	CompanyID *uuid.NullUUID
	ParentID  *uuid.NullUUID
	Email     *string
	Phone     *string
}
