package domain

import "time"

// Role is the persisted role literal of a user.
type Role string

const (
	RoleManager        Role = "Менеджер"
	RoleMaster         Role = "Мастер"
	RoleOperator       Role = "Оператор"
	RoleClient         Role = "Заказчик"
	RoleQualityManager Role = "Менеджер качества"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleManager, RoleMaster, RoleOperator, RoleClient, RoleQualityManager}

// Valid reports whether the role is one of the fixed literals.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User is an account of any role. Role is immutable once created.
type User struct {
	ID           int64
	FullName     string
	Phone        string
	Login        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
}

// Can reports whether the user holds the given permission.
func (u *User) Can(p Permission) bool {
	if u == nil {
		return false
	}
	return u.Role.Can(p)
}

// CanAny reports whether the user holds at least one of the permissions.
func (u *User) CanAny(perms ...Permission) bool {
	for _, p := range perms {
		if u.Can(p) {
			return true
		}
	}
	return false
}

// Is reports whether the user has the given role.
func (u *User) Is(role Role) bool {
	return u != nil && u.Role == role
}
