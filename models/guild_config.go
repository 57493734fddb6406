package models

import "sort"

// RulesAcknowledgeEmoji is the reaction members add to the rules message to receive the base role
const RulesAcknowledgeEmoji = "✅"

// GuildConfig holds the reaction-role configuration of a single guild.
// Empty string fields mean "not configured".
type GuildConfig struct {
	guildID string

	RulesMessageID string            `db:"rules_message_id"`
	RolesMessageID string            `db:"roles_message_id"`
	BaseRoleID     string            `db:"base_role_id"`
	EmojiRoles     map[string]string `db:"-"` // emoji key -> role ID
}

// NewGuildConfig creates an empty configuration for a guild
func NewGuildConfig(guildID string) *GuildConfig {
	return &GuildConfig{
		guildID:    guildID,
		EmojiRoles: make(map[string]string),
	}
}

// GuildID returns the guild this configuration belongs to
func (c *GuildConfig) GuildID() string {
	return c.guildID
}

// Clone returns a deep copy of the configuration
func (c *GuildConfig) Clone() *GuildConfig {
	clone := *c
	clone.EmojiRoles = make(map[string]string, len(c.EmojiRoles))
	for emoji, role := range c.EmojiRoles {
		clone.EmojiRoles[emoji] = role
	}
	return &clone
}

// IsEmpty reports whether nothing is configured for the guild
func (c *GuildConfig) IsEmpty() bool {
	return c.RulesMessageID == "" &&
		c.RolesMessageID == "" &&
		c.BaseRoleID == "" &&
		len(c.EmojiRoles) == 0
}

// RoleForEmoji returns the role mapped to an emoji key, if any
func (c *GuildConfig) RoleForEmoji(emojiKey string) (string, bool) {
	roleID, ok := c.EmojiRoles[emojiKey]
	return roleID, ok
}

// EmojiKeys returns the mapped emoji keys in sorted order
func (c *GuildConfig) EmojiKeys() []string {
	keys := make([]string, 0, len(c.EmojiRoles))
	for emoji := range c.EmojiRoles {
		keys = append(keys, emoji)
	}
	sort.Strings(keys)
	return keys
}
