package domain

// Permission names an action gated by role.
type Permission string

const (
	PermCreateRequest  Permission = "create_request"
	PermEditRequest    Permission = "edit_request"
	PermDeleteRequest  Permission = "delete_request"
	PermAssignMaster   Permission = "assign_master"
	PermViewStatistics Permission = "view_statistics"
	PermQualityControl Permission = "quality_control"
)

var rolePermissions = map[Permission][]Role{
	PermCreateRequest:  {RoleManager, RoleOperator},
	PermEditRequest:    {RoleManager, RoleOperator, RoleMaster},
	PermDeleteRequest:  {RoleManager},
	PermAssignMaster:   {RoleManager, RoleOperator},
	PermViewStatistics: {RoleManager, RoleOperator, RoleQualityManager},
	PermQualityControl: {RoleQualityManager},
}

// Permissions returns every permission name known to the model.
func Permissions() []Permission {
	return []Permission{
		PermCreateRequest,
		PermEditRequest,
		PermDeleteRequest,
		PermAssignMaster,
		PermViewStatistics,
		PermQualityControl,
	}
}

// RolesWith returns the roles holding p. Unknown permissions yield nil.
func RolesWith(p Permission) []Role {
	roles := rolePermissions[p]
	if roles == nil {
		return nil
	}
	return append([]Role(nil), roles...)
}

// Can reports whether role r holds permission p.
func (r Role) Can(p Permission) bool {
	for _, allowed := range rolePermissions[p] {
		if allowed == r {
			return true
		}
	}
	return false
}
