package common

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestHasAdministrator(t *testing.T) {
	guild := &discordgo.Guild{
		ID:      "g1",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "g1", Permissions: discordgo.PermissionSendMessages},
			{ID: "mod", Permissions: discordgo.PermissionManageMessages},
			{ID: "admin", Permissions: discordgo.PermissionAdministrator | discordgo.PermissionSendMessages},
		},
	}

	tests := []struct {
		name   string
		userID string
		member *discordgo.Member
		want   bool
	}{
		{"owner", "owner", &discordgo.Member{}, true},
		{"admin role", "u1", &discordgo.Member{Roles: []string{"mod", "admin"}}, true},
		{"non admin role", "u2", &discordgo.Member{Roles: []string{"mod"}}, false},
		{"no roles", "u3", &discordgo.Member{}, false},
		{"computed permissions", "u4", &discordgo.Member{Permissions: discordgo.PermissionAdministrator}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasAdministrator(guild, tt.userID, tt.member))
		})
	}
}

func TestHasAdministrator_EveryoneRole(t *testing.T) {
	guild := &discordgo.Guild{
		ID:    "g1",
		Roles: []*discordgo.Role{{ID: "g1", Permissions: discordgo.PermissionAdministrator}},
	}
	assert.True(t, HasAdministrator(guild, "u1", &discordgo.Member{}))
}
