package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"neodymium/service"

	"github.com/bwmarrin/discordgo"
)

// Platform performs role and message side effects through discordgo REST calls
type Platform struct {
	session *discordgo.Session
}

var _ service.Platform = (*Platform)(nil)

// NewPlatform creates a platform backed by session
func NewPlatform(session *discordgo.Session) *Platform {
	return &Platform{session: session}
}

func (p *Platform) GrantRole(ctx context.Context, guildID, memberID, roleID string) error {
	err := p.session.GuildMemberRoleAdd(guildID, memberID, roleID, discordgo.WithContext(ctx))
	return mapRESTError(err)
}

func (p *Platform) RevokeRole(ctx context.Context, guildID, memberID, roleID string) error {
	err := p.session.GuildMemberRoleRemove(guildID, memberID, roleID, discordgo.WithContext(ctx))
	return mapRESTError(err)
}

func (p *Platform) SendMessage(ctx context.Context, channelID, content string) error {
	_, err := p.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	return mapRESTError(err)
}

func (p *Platform) RemoveReaction(ctx context.Context, channelID, messageID, emoji, memberID string) error {
	err := p.session.MessageReactionRemove(channelID, messageID, emoji, memberID, discordgo.WithContext(ctx))
	return mapRESTError(err)
}

// mapRESTError marks missing-permission responses with service.ErrPermissionDenied
func mapRESTError(err error) error {
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		forbidden := restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
				forbidden = true
			}
		}
		if forbidden {
			return fmt.Errorf("%w: %w", service.ErrPermissionDenied, err)
		}
	}
	return err
}
