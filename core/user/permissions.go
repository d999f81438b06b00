package user

// Permission is a capability checked before any protected operation.
type Permission string

const (
	PermManageUsers      Permission = "users.manage"
	PermManageRegulation Permission = "regulation.manage"
	PermManageClasses    Permission = "classes.manage"
	PermManageCatalog    Permission = "catalog.manage"
	PermBalanceClasses   Permission = "classes.balance"
	PermAdmitStudents    Permission = "students.admit"
	PermRecordScores     Permission = "scores.record"
	PermRecordAnyScore   Permission = "scores.record_any" // no teaching assignment needed
	PermViewReports      Permission = "reports.view"
	PermViewStatistics   Permission = "statistics.view"
	PermViewOwnReport    Permission = "reports.view_own"
)

var (
	adminPermissions = []Permission{
		PermManageUsers,
		PermManageRegulation,
		PermManageClasses,
		PermManageCatalog,
		PermBalanceClasses,
		PermAdmitStudents,
		PermRecordScores,
		PermRecordAnyScore,
		PermViewReports,
		PermViewStatistics,
		PermViewOwnReport,
	}

	rolePermissions = map[string]map[Permission]bool{
		RoleAdmin:          permSet(adminPermissions...),
		RoleAdminPrincipal: permSet(adminPermissions...),
		RoleAdminOwner:     permSet(adminPermissions...),
		RoleTeacher:        permSet(PermRecordScores, PermViewReports, PermViewStatistics),
		RoleStudent:        permSet(PermViewOwnReport),
	}
)

func permSet(perms ...Permission) map[Permission]bool {
	set := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		set[p] = true
	}
	return set
}

// Can is the single access check of the application: it reports whether any of roles grants perm.
func Can(roles []string, perm Permission) bool {
	for _, role := range roles {
		if rolePermissions[role][perm] {
			return true
		}
	}
	return false
}
