package models

// Emoji identifies a reaction emoji. Custom emoji carry a platform ID,
// unicode emoji only a name.
type Emoji struct {
	ID   string
	Name string
}

// Key returns the identifier used in emoji-role mappings
func (e Emoji) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Name
}

// APIName returns the form the platform expects when referring to the emoji in REST calls
func (e Emoji) APIName() string {
	if e.ID != "" {
		return e.Name + ":" + e.ID
	}
	return e.Name
}

// ReactionEvent is a reaction added to or removed from a message
type ReactionEvent struct {
	GuildID     string
	ChannelID   string
	MessageID   string
	MemberID    string
	MemberRoles []string
	Emoji       Emoji
	Added       bool // false for reaction removals
	FromBot     bool
}

// HasRole reports whether the reacting member holds a role
func (e ReactionEvent) HasRole(roleID string) bool {
	for _, r := range e.MemberRoles {
		if r == roleID {
			return true
		}
	}
	return false
}

// ActionKind classifies what a reaction should do
type ActionKind string

const (
	ActionIgnore        ActionKind = "ignore"
	ActionGrantBaseRole ActionKind = "grant_base_role"
	ActionToggleRole    ActionKind = "toggle_role"
)

// Action is the outcome of classifying a reaction
type Action struct {
	Kind   ActionKind
	RoleID string // set for ActionToggleRole
}

// RoleChange is the platform-side change applied for an action
type RoleChange string

const (
	RoleChangeNone    RoleChange = "none"
	RoleChangeGranted RoleChange = "granted"
	RoleChangeRevoked RoleChange = "revoked"
)
