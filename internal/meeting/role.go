// Package meeting implements meeting tokens, link issuance and room
// provisioning.
package meeting

import "fmt"

// Role is the capability carried by a meeting token.
type Role string

const (
	// RoleModerator may open (provision) the room and receives the host URL.
	RoleModerator Role = "moderator"

	// RoleParticipant may only join an already-opened room.
	RoleParticipant Role = "participant"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleModerator || r == RoleParticipant
}

// PathSegment returns the URL path segment a link for this role points at.
func (r Role) PathSegment() (string, error) {
	switch r {
	case RoleModerator:
		return "host", nil
	case RoleParticipant:
		return "join", nil
	default:
		return "", fmt.Errorf("unknown role %q", string(r))
	}
}
