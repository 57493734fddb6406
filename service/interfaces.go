package service

import (
	"context"

	"neodymium/models"
)

// GuildConfigRepository defines the persistence backend for guild configurations
type GuildConfigRepository interface {
	// LoadAll returns every persisted guild configuration.
	// Malformed records are skipped rather than failing the load.
	LoadAll(ctx context.Context) ([]*models.GuildConfig, error)

	// Save replaces everything stored for the configuration's guild
	Save(ctx context.Context, cfg *models.GuildConfig) error

	// Delete removes everything stored for a guild. Deleting an unknown guild is not an error.
	Delete(ctx context.Context, guildID string) error
}

// GuildConfigService defines the operations on the per-guild configuration store
type GuildConfigService interface {
	Load(ctx context.Context) error
	GetConfig(guildID string) (*models.GuildConfig, error)
	RegisterGuild(guildID string) (bool, error)
	Guilds() []string

	SetRulesMessage(ctx context.Context, guildID, messageID string) error
	ClearRulesMessage(ctx context.Context, guildID string) error

	SetRolesMessage(ctx context.Context, guildID, messageID string) error
	ClearRolesMessage(ctx context.Context, guildID string) error

	SetBaseRole(ctx context.Context, guildID, roleID string) error
	ClearBaseRole(ctx context.Context, guildID string) error

	AddEmojiRoleMapping(ctx context.Context, guildID, emojiKey, roleID string) error
	RemoveEmojiRoleMapping(ctx context.Context, guildID, emojiKey string) error

	ForgetGuild(ctx context.Context, guildID string) error
}

// Platform is the action surface of the chat platform.
// Implementations report rejected role changes as ErrPermissionDenied.
type Platform interface {
	GrantRole(ctx context.Context, guildID, memberID, roleID string) error
	RevokeRole(ctx context.Context, guildID, memberID, roleID string) error
	SendMessage(ctx context.Context, channelID, content string) error

	// RemoveReaction removes a member's reaction; emoji is in the platform's API form
	RemoveReaction(ctx context.Context, channelID, messageID, emoji, memberID string) error
}

// Metrics records reaction and command outcomes
type Metrics interface {
	RecordReaction(action models.ActionKind)
	RecordRoleChange(change models.RoleChange, err error)
	RecordCommand(command string, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordReaction(models.ActionKind)           {}
func (noopMetrics) RecordRoleChange(models.RoleChange, error) {}
func (noopMetrics) RecordCommand(string, error)                {}
