package feed

import "campusfeed_backend/models"

// Principal is the authenticated caller, passed explicitly into every
// operation. A nil Principal is an anonymous reader.
type Principal struct {
	ID          string
	DisplayName string
	AvatarURL   string
	Role        models.Role
}

// Moderator reports whether the principal may moderate posts and see
// unapproved or unscheduled content.
func (p *Principal) Moderator() bool {
	return p != nil && (p.Role == models.RoleAdmin || p.Role == models.RoleSubadmin)
}
