package enums

import "slices"

// UserRole is the role granted by a user_roles row.
type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleCustomer UserRole = "customer"
)

var UserRoles = []UserRole{UserRoleAdmin, UserRoleCustomer}

func (r UserRole) IsValid() bool { return slices.Contains(UserRoles, r) }
