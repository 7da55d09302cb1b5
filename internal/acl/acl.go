package acl

import (
	"github.com/gocrm-io/gocrm-ce/internal/models"
)

// Checker answers scope-level access questions from an explicit role table.
// Record-level ownership checks stay with the services that own the records.
type Checker struct {
	scopes map[string]map[string]bool
}

// agentScopes are the entity types regular agents operate on.
var agentScopes = []string{
	"Contact", "Lead", "Account", "Case", "Opportunity", "MailAccount",
}

// portalScopes are the few entity types portal users may touch.
var portalScopes = []string{"Case"}

// NewChecker builds the default role table. Admins get every known scope,
// agents the CRM set, portal users only their own surface.
func NewChecker() *Checker {
	scopes := map[string]map[string]bool{
		models.RoleAdmin:  {},
		models.RoleAgent:  {},
		models.RolePortal: {},
	}
	for _, scope := range agentScopes {
		scopes[models.RoleAdmin][scope] = true
		scopes[models.RoleAgent][scope] = true
	}
	scopes[models.RoleAdmin]["User"] = true
	scopes[models.RoleAdmin]["Team"] = true
	for _, scope := range portalScopes {
		scopes[models.RolePortal][scope] = true
	}
	return &Checker{scopes: scopes}
}

// CheckScope reports whether the role may operate on the entity type.
func (c *Checker) CheckScope(role, entityType string) bool {
	allowed, ok := c.scopes[role]
	if !ok {
		return false
	}
	return allowed[entityType]
}
