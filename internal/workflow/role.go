package workflow

import "github.com/noah-isme/datashare-api/internal/models"

// Roles returns every slot orgID occupies on tx, in consumer, subject, holder order.
func Roles(tx *models.Transaction, orgID string) []models.Role {
	if tx == nil || orgID == "" {
		return nil
	}
	var roles []models.Role
	if tx.ConsumerOrgID == orgID {
		roles = append(roles, models.RoleConsumer)
	}
	if tx.SubjectOrgID == orgID {
		roles = append(roles, models.RoleSubject)
	}
	if tx.HolderOrgID == orgID {
		roles = append(roles, models.RoleHolder)
	}
	return roles
}

// ResolveRole returns the single role orgID acts under for action. When the org
// fills several slots (subject == holder) the slot the current rule requires
// wins. An empty action picks the slot that can act right now, falling back to
// the first slot held.
func ResolveRole(tx *models.Transaction, orgID string, action models.ApprovalAction) models.Role {
	held := Roles(tx, orgID)
	if len(held) == 0 {
		return models.RoleNone
	}

	if action != "" {
		if rule, ok := Lookup(tx.Status, action); ok {
			for _, role := range held {
				if rule.Permits(role) {
					return role
				}
			}
		}
		return held[0]
	}

	for _, role := range held {
		if len(Available(tx.Status, role)) > 0 {
			return role
		}
	}
	return held[0]
}
