package domain

// Principal is the authenticated caller as asserted by the identity provider.
type Principal struct {
	UserID         string
	OrganizationID string
	Role           UserRole
}

// IsAdmin reports whether the caller administers its organization.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
