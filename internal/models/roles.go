package models

import "fmt"

// Role is the coarse identity class resolved at connect time. Everything a
// connection may do derives from its role through the capability table
// below; there is no per-user permission storage in the hub.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleUser      Role = "user"
	RoleHelper    Role = "helper"
	RoleCounselor Role = "counselor"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// AllRoles is the closed set the capability table must cover.
var AllRoles = []Role{
	RoleAnonymous, RoleUser, RoleHelper, RoleCounselor, RoleModerator, RoleAdmin,
}

type Capability string

const (
	CapSendMessage       Capability = "send_message"
	CapEditOwnMessage    Capability = "edit_own_message"
	CapDeleteOwnMessage  Capability = "delete_own_message"
	CapReact             Capability = "react"
	CapJoinRoom          Capability = "join_room"
	CapCreateRoom        Capability = "create_room"
	CapKickMember        Capability = "kick_member"
	CapBanMember         Capability = "ban_member"
	CapRespondCrisis     Capability = "respond_crisis"
	CapViewCrisisBoard   Capability = "view_crisis_dashboard"
	CapBroadcastSystem   Capability = "broadcast_system"
	CapRequestCrisisHelp Capability = "request_crisis_help"
)

// CapabilitySet answers "may this role do X" in O(1).
type CapabilitySet map[Capability]bool

func (s CapabilitySet) Has(c Capability) bool { return s[c] }

func newSet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return set
}

// rolePermissions is the static role → capability lookup. Mutating role
// behavior means editing this table, nothing else.
var rolePermissions = map[Role]CapabilitySet{
	RoleAnonymous: newSet(
		CapSendMessage, CapReact, CapJoinRoom, CapRequestCrisisHelp,
	),
	RoleUser: newSet(
		CapSendMessage, CapEditOwnMessage, CapDeleteOwnMessage, CapReact,
		CapJoinRoom, CapCreateRoom, CapRequestCrisisHelp,
	),
	RoleHelper: newSet(
		CapSendMessage, CapEditOwnMessage, CapDeleteOwnMessage, CapReact,
		CapJoinRoom, CapCreateRoom, CapRequestCrisisHelp,
	),
	RoleCounselor: newSet(
		CapSendMessage, CapEditOwnMessage, CapDeleteOwnMessage, CapReact,
		CapJoinRoom, CapCreateRoom, CapRequestCrisisHelp,
		CapRespondCrisis, CapViewCrisisBoard,
	),
	RoleModerator: newSet(
		CapSendMessage, CapEditOwnMessage, CapDeleteOwnMessage, CapReact,
		CapJoinRoom, CapCreateRoom, CapRequestCrisisHelp,
		CapKickMember, CapBanMember,
	),
	RoleAdmin: newSet(
		CapSendMessage, CapEditOwnMessage, CapDeleteOwnMessage, CapReact,
		CapJoinRoom, CapCreateRoom, CapRequestCrisisHelp,
		CapKickMember, CapBanMember,
		CapRespondCrisis, CapViewCrisisBoard, CapBroadcastSystem,
	),
}

// PermissionsFor returns the capability set for a role. Unknown roles get
// the anonymous set.
func PermissionsFor(role Role) CapabilitySet {
	if set, ok := rolePermissions[role]; ok {
		return set
	}
	return rolePermissions[RoleAnonymous]
}

// ValidatePermissionTable checks at startup that every role has an entry
// and at least the baseline capabilities a connected client needs.
func ValidatePermissionTable() error {
	for _, role := range AllRoles {
		set, ok := rolePermissions[role]
		if !ok {
			return fmt.Errorf("permission table missing role %q", role)
		}
		if !set.Has(CapJoinRoom) {
			return fmt.Errorf("role %q cannot join rooms; table is inconsistent", role)
		}
	}
	return nil
}

// IsCounselorRole reports whether a role is eligible for crisis
// assignment.
func IsCounselorRole(role Role) bool {
	return role == RoleCounselor || role == RoleAdmin
}

// IsModeratorRole reports whether a role carries room moderation power
// regardless of per-room moderator lists.
func IsModeratorRole(role Role) bool {
	return role == RoleModerator || role == RoleAdmin
}
