package session

import "github.com/fyrsmithlabs/roadwatch/internal/feed"

// Capabilities is what the current user may do, derived once from the role.
type Capabilities struct {
	Authenticated        bool
	CanReport            bool
	CanComment           bool
	CanVote              bool
	CanCheckIn           bool
	CanVerifyIncidents   bool
	CanModerateIncidents bool
	CanModerateComments  bool
	CanModerateUsers     bool
	CanManageAdmins      bool
}

// CapabilitiesFor derives capabilities for u. A nil user is anonymous.
func CapabilitiesFor(u *feed.User) Capabilities {
	if u == nil {
		return Capabilities{}
	}
	admin := u.Role == feed.RoleAdmin
	return Capabilities{
		Authenticated:        true,
		CanReport:            true,
		CanComment:           true,
		CanVote:              true,
		CanCheckIn:           true,
		CanVerifyIncidents:   admin || u.Role == feed.RoleOfficer,
		CanModerateIncidents: admin,
		CanModerateComments:  admin,
		CanModerateUsers:     admin,
		CanManageAdmins:      admin,
	}
}
