package acl

import (
	"testing"

	"github.com/gocrm-io/gocrm-ce/internal/models"
)

func TestCheckScope(t *testing.T) {
	c := NewChecker()

	cases := []struct {
		role       string
		entityType string
		want       bool
	}{
		{models.RoleAdmin, "Contact", true},
		{models.RoleAdmin, "User", true},
		{models.RoleAgent, "Contact", true},
		{models.RoleAgent, "User", false},
		{models.RolePortal, "Case", true},
		{models.RolePortal, "Contact", false},
		{"unknown", "Contact", false},
	}
	for _, tc := range cases {
		if got := c.CheckScope(tc.role, tc.entityType); got != tc.want {
			t.Fatalf("CheckScope(%s, %s) = %t, want %t", tc.role, tc.entityType, got, tc.want)
		}
	}
}
