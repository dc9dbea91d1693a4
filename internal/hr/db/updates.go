package db

import (
	"github.com/gartstein/hr/internal/hr/models"
	"github.com/google/uuid"
)

// The update structs use pointers so unset fields stay untouched; nullable
// foreign keys use NullUUID so callers can distinguish "set" from "clear".
// GORM struct updates cannot write NULL, so the maps are built by hand.

func nullableID(v *uuid.NullUUID) interface{} {
	if v.Valid {
		return v.UUID
	}
	return nil
}

func employeeUpdateFields(u *models.EmployeeUpdate) map[string]interface{} {
	fields := map[string]interface{}{}
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.UserID != nil {
		fields["user_id"] = nullableID(u.UserID)
	}
	if u.DepartmentID != nil {
		fields["department_id"] = nullableID(u.DepartmentID)
	}
	if u.ContactID != nil {
		fields["contact_id"] = nullableID(u.ContactID)
	}
	if u.WorkEmail != nil {
		fields["work_email"] = *u.WorkEmail
	}
	if u.WorkPhone != nil {
		fields["work_phone"] = *u.WorkPhone
	}
	if u.Active != nil {
		fields["active"] = *u.Active
	}
	return fields
}

func departmentUpdateFields(u *models.DepartmentUpdate) map[string]interface{} {
	fields := map[string]interface{}{}
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.TotalEmployee != nil {
		fields["total_employee"] = *u.TotalEmployee
	}
	if u.Active != nil {
		fields["active"] = *u.Active
	}
	return fields
}

func contactUpdateFields(u *models.ContactUpdate) map[string]interface{} {
	fields := map[string]interface{}{}
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.CompanyID != nil {
		fields["company_id"] = nullableID(u.CompanyID)
	}
	if u.ParentID != nil {
		fields["parent_id"] = nullableID(u.ParentID)
	}
	if u.Email != nil {
		fields["email"] = *u.Email
	}
	if u.Phone != nil {
		fields["phone"] = *u.Phone
	}
	return fields
}
