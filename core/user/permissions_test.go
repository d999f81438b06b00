package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCan(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		perm  Permission
		want  bool
	}{
		{name: "no role", perm: PermViewOwnReport, want: false},
		{name: "unknown role", roles: []string{"janitor:"}, perm: PermViewOwnReport, want: false},
		{name: "admin manages regulation", roles: []string{RoleAdmin}, perm: PermManageRegulation, want: true},
		{name: "owner balances classes", roles: []string{RoleAdminOwner}, perm: PermBalanceClasses, want: true},
		{name: "principal admits students", roles: []string{RoleAdminPrincipal}, perm: PermAdmitStudents, want: true},
		{name: "teacher records scores", roles: []string{RoleTeacher}, perm: PermRecordScores, want: true},
		{name: "teacher views statistics", roles: []string{RoleTeacher}, perm: PermViewStatistics, want: true},
		{name: "teacher cannot admit", roles: []string{RoleTeacher}, perm: PermAdmitStudents, want: false},
		{name: "teacher cannot manage classes", roles: []string{RoleTeacher}, perm: PermManageClasses, want: false},
		{name: "student views own report", roles: []string{RoleStudent}, perm: PermViewOwnReport, want: true},
		{name: "student cannot view reports", roles: []string{RoleStudent}, perm: PermViewReports, want: false},
		{name: "student cannot record scores", roles: []string{RoleStudent}, perm: PermRecordScores, want: false},
		{name: "admin records any score", roles: []string{RoleAdmin}, perm: PermRecordAnyScore, want: true},
		{name: "teacher needs an assignment", roles: []string{RoleTeacher}, perm: PermRecordAnyScore, want: false},
		{name: "any role grants", roles: []string{RoleStudent, RoleTeacher}, perm: PermRecordScores, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.roles, tt.perm))
			usr := User{Roles: tt.roles}
			assert.Equal(t, tt.want, usr.Can(tt.perm))
		})
	}
}

func TestAdminsHoldEveryPermission(t *testing.T) {
	for _, role := range AdminRoles {
		for _, perm := range adminPermissions {
			assert.True(t, Can([]string{role}, perm), "%s %s", role, perm)
		}
	}
}

func TestMaxRolePriority(t *testing.T) {
	assert.Equal(t, 0, MaxRolePriority(nil))
	assert.Equal(t, 1, MaxRolePriority([]string{RoleStudent}))
	assert.Equal(t, 30, MaxRolePriority([]string{RoleTeacher, RoleAdminOwner, RoleAdmin}))
}
