package common

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// GetGuild returns a guild from the state cache, falling back to the REST API
func GetGuild(s *discordgo.Session, guildID string) (*discordgo.Guild, error) {
	if s.State != nil {
		if guild, err := s.State.Guild(guildID); err == nil {
			return guild, nil
		}
	}

	guild, err := s.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guild %s: %w", guildID, err)
	}
	return guild, nil
}

// IsUserAdmin checks if a user has administrator permissions in a guild.
// member may be the partial member attached to a message; it is fetched when nil.
func IsUserAdmin(s *discordgo.Session, guildID, userID string, member *discordgo.Member) bool {
	if member == nil {
		var err error
		member, err = s.GuildMember(guildID, userID)
		if err != nil {
			log.Errorf("Failed to get guild member: %v", err)
			return false
		}
	}

	guild, err := GetGuild(s, guildID)
	if err != nil {
		log.Errorf("Failed to get guild for permission check: %v", err)
		return false
	}

	return HasAdministrator(guild, userID, member)
}

// HasAdministrator reports whether the member owns the guild or holds a role
// granting the administrator permission
func HasAdministrator(guild *discordgo.Guild, userID string, member *discordgo.Member) bool {
	if guild.OwnerID != "" && guild.OwnerID == userID {
		return true
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}

	held := make(map[string]bool, len(member.Roles))
	for _, roleID := range member.Roles {
		held[roleID] = true
	}

	for _, role := range guild.Roles {
		if role.Permissions&discordgo.PermissionAdministrator == 0 {
			continue
		}
		// The @everyone role shares the guild's ID
		if held[role.ID] || role.ID == guild.ID {
			return true
		}
	}

	return false
}
