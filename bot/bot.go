package bot

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"neodymium/bot/common"
	"neodymium/models"
	"neodymium/service"

	"github.com/bwmarrin/discordgo"
)

// handlerTimeout bounds the platform calls made while handling one gateway event
const handlerTimeout = 15 * time.Second

// Intents requested from the gateway
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsMessageContent

type Bot struct {
	session   *discordgo.Session
	store     service.GuildConfigService
	reactions *service.ReactionService
	commands  *service.CommandService
	welcome   *service.WelcomeService
}

// NewSession creates a discord session with the intents the bot needs
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = Intents
	dg.StateEnabled = true
	return dg, nil
}

// New wires the gateway handlers. The session is not opened until Start.
func New(session *discordgo.Session, store service.GuildConfigService, reactions *service.ReactionService, commands *service.CommandService, welcome *service.WelcomeService) *Bot {
	bot := &Bot{
		session:   session,
		store:     store,
		reactions: reactions,
		commands:  commands,
		welcome:   welcome,
	}

	session.AddHandler(bot.handleReady)
	session.AddHandler(bot.handleGuildCreate)
	session.AddHandler(bot.handleGuildMemberAdd)
	session.AddHandler(bot.handleReactionAdd)
	session.AddHandler(bot.handleReactionRemove)
	session.AddHandler(bot.handleMessageCreate)

	return bot
}

// Start opens the websocket connection
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Infof("%s#%s has connected to Discord", r.User.Username, r.User.Discriminator)

	for _, guild := range r.Guilds {
		if _, err := b.store.RegisterGuild(guild.ID); err != nil {
			log.Errorf("Failed to register guild %s: %v", guild.ID, err)
			continue
		}
		log.WithFields(log.Fields{
			"guildID":   guild.ID,
			"guildName": guild.Name,
		}).Info("Visible guild")
	}
}

func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	created, err := b.store.RegisterGuild(g.ID)
	if err != nil {
		log.Errorf("Failed to register guild %s: %v", g.ID, err)
		return
	}
	if created {
		log.WithFields(log.Fields{
			"guildID":   g.ID,
			"guildName": g.Name,
		}).Info("Joined guild")
	}
}

func (b *Bot) handleGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.User == nil || m.User.Bot {
		return
	}

	guild, err := common.GetGuild(s, m.GuildID)
	if err != nil {
		log.Errorf("Failed to get guild %s for welcome message: %v", m.GuildID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := b.welcome.GreetMember(ctx, guild.SystemChannelID, m.User.ID, guild.Name); err != nil {
		log.WithFields(log.Fields{
			"guildID":  m.GuildID,
			"memberID": m.User.ID,
			"error":    err,
		}).Error("Failed to welcome member")
	}
}

func (b *Bot) handleReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	b.dispatchReaction(reactionEvent(selfID(s), r.MessageReaction, r.Member, true))
}

func (b *Bot) handleReactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	b.dispatchReaction(reactionEvent(selfID(s), r.MessageReaction, nil, false))
}

func (b *Bot) dispatchReaction(ev models.ReactionEvent) {
	if ev.GuildID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	result, err := b.reactions.HandleReaction(ctx, ev)
	if err != nil {
		log.WithFields(log.Fields{
			"guildID":   ev.GuildID,
			"messageID": ev.MessageID,
			"memberID":  ev.MemberID,
			"emoji":     ev.Emoji.Key(),
			"error":     err,
		}).Error("Failed to handle reaction")
		return
	}

	if result.Change != models.RoleChangeNone {
		log.WithFields(log.Fields{
			"guildID":  ev.GuildID,
			"memberID": ev.MemberID,
			"roleID":   result.RoleID,
			"change":   result.Change,
		}).Info("Applied reaction role")
	}
}

func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	cmd, ok := b.commands.Parse(m.Content)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	cc := service.CommandContext{
		GuildID: m.GuildID,
		IsAdmin: common.IsUserAdmin(s, m.GuildID, m.Author.ID, m.Member),
	}

	reply, err := b.commands.Execute(ctx, cc, cmd)
	if err != nil {
		log.WithFields(log.Fields{
			"guildID": m.GuildID,
			"userID":  m.Author.ID,
			"command": cmd.Name,
			"error":   err,
		}).Warn("Command failed")
		reply = service.ReplyForError(err)
	}
	if reply == "" {
		return
	}

	if _, err := s.ChannelMessageSend(m.ChannelID, reply, discordgo.WithContext(ctx)); err != nil {
		log.Errorf("Failed to reply to command %s: %v", cmd.Name, err)
	}
}

func selfID(s *discordgo.Session) string {
	if s.State == nil || s.State.User == nil {
		return ""
	}
	return s.State.User.ID
}

// reactionEvent converts a gateway reaction into the engine's event type
func reactionEvent(botUserID string, r *discordgo.MessageReaction, member *discordgo.Member, added bool) models.ReactionEvent {
	ev := models.ReactionEvent{
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		MemberID:  r.UserID,
		Emoji: models.Emoji{
			ID:   r.Emoji.ID,
			Name: r.Emoji.Name,
		},
		Added:   added,
		FromBot: botUserID != "" && r.UserID == botUserID,
	}

	if member != nil {
		ev.MemberRoles = append([]string(nil), member.Roles...)
		if member.User != nil && member.User.Bot {
			ev.FromBot = true
		}
	}
	return ev
}
