package entity

import "time"

// Role is the closed set of directory roles
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// Capability is an action gated at the authorization boundary
type Capability string

const (
	CapabilitySubmitClaim       Capability = "claim:submit"
	CapabilityDecideClaim       Capability = "claim:decide"
	CapabilityViewTeamClaims    Capability = "claim:view_team"
	CapabilityViewCompanyClaims Capability = "claim:view_company"
	CapabilityConfigurePolicy   Capability = "policy:configure"
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleAdmin: {
		CapabilitySubmitClaim:       true,
		CapabilityDecideClaim:       true,
		CapabilityViewTeamClaims:    true,
		CapabilityViewCompanyClaims: true,
		CapabilityConfigurePolicy:   true,
	},
	RoleManager: {
		CapabilitySubmitClaim:    true,
		CapabilityDecideClaim:    true,
		CapabilityViewTeamClaims: true,
	},
	RoleEmployee: {
		CapabilitySubmitClaim: true,
	},
}

// IsValid returns true for admin, manager and employee
func (r Role) IsValid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Can reports whether the role holds the capability
func (r Role) Can(c Capability) bool {
	return roleCapabilities[r][c]
}

// User is a directory entry as supplied by the identity/org collaborator
type User struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	ManagerID string    `json:"manager_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Company owns users, claims and policies
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}
