package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"neodymium/models"
)

// Command is a parsed administrator chat command
type Command struct {
	Name string
	Args []string
}

// CommandContext carries who issued a command and where
type CommandContext struct {
	GuildID string
	IsAdmin bool
}

type commandSpec struct {
	usage   string
	admin   bool
	minArgs int
	run     func(s *CommandService, ctx context.Context, cc CommandContext, args []string) (string, error)
}

// CommandService executes the configuration commands against the guild store
type CommandService struct {
	store    GuildConfigService
	prefix   string
	metrics  Metrics
	commands map[string]commandSpec
}

// NewCommandService creates a command service for the given prefix. metrics may be nil.
func NewCommandService(store GuildConfigService, prefix string, metrics Metrics) *CommandService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if prefix == "" {
		prefix = "/"
	}
	s := &CommandService{
		store:   store,
		prefix:  prefix,
		metrics: metrics,
	}
	s.commands = map[string]commandSpec{
		"set_rules":       {usage: "set_rules <messageId>", admin: true, minArgs: 1, run: (*CommandService).setRules},
		"del_rules":       {usage: "del_rules", admin: true, run: (*CommandService).delRules},
		"get_rules":       {usage: "get_rules", run: (*CommandService).getRules},
		"set_roles_msg":   {usage: "set_roles_msg <messageId>", admin: true, minArgs: 1, run: (*CommandService).setRolesMessage},
		"del_roles":       {usage: "del_roles", admin: true, run: (*CommandService).delRoles},
		"get_roles":       {usage: "get_roles", run: (*CommandService).getRoles},
		"set_role_emoji":  {usage: "set_role_emoji <emoji> <roleId>", admin: true, minArgs: 2, run: (*CommandService).setRoleEmoji},
		"del_role_emoji":  {usage: "del_role_emoji <emoji>", admin: true, minArgs: 1, run: (*CommandService).delRoleEmoji},
		"get_role_emojis": {usage: "get_role_emojis", run: (*CommandService).getRoleEmojis},
		"set_base_role":   {usage: "set_base_role <roleId>", admin: true, minArgs: 1, run: (*CommandService).setBaseRole},
		"del_base_role":   {usage: "del_base_role", admin: true, run: (*CommandService).delBaseRole},
		"get_base_role":   {usage: "get_base_role", run: (*CommandService).getBaseRole},
		"forget":          {usage: "forget", admin: true, run: (*CommandService).forget},
		"help":            {usage: "help", run: (*CommandService).help},
	}
	return s
}

// Parse extracts a known command from message content.
// It returns false for anything that is not one of our commands.
func (s *CommandService) Parse(content string) (*Command, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, s.prefix) {
		return nil, false
	}

	fields := strings.Fields(strings.TrimPrefix(content, s.prefix))
	if len(fields) == 0 {
		return nil, false
	}

	name := strings.ToLower(fields[0])
	if _, ok := s.commands[name]; !ok {
		return nil, false
	}
	return &Command{Name: name, Args: fields[1:]}, true
}

// Execute runs a parsed command and returns the reply to post
func (s *CommandService) Execute(ctx context.Context, cc CommandContext, cmd *Command) (string, error) {
	spec, ok := s.commands[cmd.Name]
	if !ok {
		return "", badInput("unknown command %q", cmd.Name)
	}

	reply, err := s.execute(ctx, cc, cmd, spec)
	s.metrics.RecordCommand(cmd.Name, err)
	return reply, err
}

func (s *CommandService) execute(ctx context.Context, cc CommandContext, cmd *Command, spec commandSpec) (string, error) {
	if spec.admin && !cc.IsAdmin {
		return "", ErrAdminRequired
	}
	if len(cmd.Args) < spec.minArgs {
		return "", badInput("usage: `%s%s`", s.prefix, spec.usage)
	}
	return spec.run(s, ctx, cc, cmd.Args)
}

// ReplyForError converts a command error into the chat reply shown to the invoker
func ReplyForError(err error) string {
	switch {
	case errors.Is(err, ErrAdminRequired):
		return "❌ You need administrator permissions to use this command"
	case errors.Is(err, ErrBadInput):
		return fmt.Sprintf("❌ Bad arguments formatting (%s)", strings.TrimPrefix(err.Error(), ErrBadInput.Error()+": "))
	case errors.Is(err, ErrConflict):
		return "❌ That emoji is already mapped to a role. Remove it first with `del_role_emoji`."
	case errors.Is(err, ErrNotFound):
		return "❌ This server is not registered yet, please try again shortly"
	case errors.Is(err, ErrPersistence):
		return "❌ Failed to save settings, nothing was changed"
	default:
		return "❌ Failed to process command"
	}
}

func (s *CommandService) setRules(ctx context.Context, cc CommandContext, args []string) (string, error) {
	messageID, err := ParseMessageID(args[0])
	if err != nil {
		return "", err
	}
	if err := s.store.SetRulesMessage(ctx, cc.GuildID, messageID); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Rules message set to `%s`", messageID), nil
}

func (s *CommandService) delRules(ctx context.Context, cc CommandContext, _ []string) (string, error) {
	if err := s.store.ClearRulesMessage(ctx, cc.GuildID); err != nil {
		return "", err
	}
	return "✅ Rules message removed", nil
}

func (s *CommandService) getRules(_ context.Context, cc CommandContext, _ []string) (string, error) {
	cfg, err := s.store.GetConfig(cc.GuildID)
	if err != nil {
		return "", err
	}
	if cfg.RulesMessageID == "" {
		return "No rules message is configured", nil
	}
	return fmt.Sprintf("Rules message: `%s`", cfg.RulesMessageID), nil
}

func (s *CommandService) setRolesMessage(ctx context.Context, cc CommandContext, args []string) (string, error) {
	messageID, err := ParseMessageID(args[0])
	if err != nil {
		return "", err
	}
	if err := s.store.SetRolesMessage(ctx, cc.GuildID, messageID); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Roles message set to `%s`", messageID), nil
}

func (s *CommandService) delRoles(ctx context.Context, cc CommandContext, _ []string) (string, error) {
	if err := s.store.ClearRolesMessage(ctx, cc.GuildID); err != nil {
		return "", err
	}
	return "✅ Roles message removed", nil
}

func (s *CommandService) getRoles(_ context.Context, cc CommandContext, _ []string) (string, error) {
	cfg, err := s.store.GetConfig(cc.GuildID)
	if err != nil {
		return "", err
	}
	if cfg.RolesMessageID == "" {
		return "No roles message is configured", nil
	}
	return fmt.Sprintf("Roles message: `%s`", cfg.RolesMessageID), nil
}

func (s *CommandService) setRoleEmoji(ctx context.Context, cc CommandContext, args []string) (string, error) {
	emoji, err := ParseEmoji(args[0])
	if err != nil {
		return "", err
	}
	roleID, err := ParseRoleID(args[1])
	if err != nil {
		return "", err
	}
	if err := s.store.AddEmojiRoleMapping(ctx, cc.GuildID, emoji.Key(), roleID); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ %s now toggles <@&%s>", formatEmoji(emoji.Key()), roleID), nil
}

func (s *CommandService) delRoleEmoji(ctx context.Context, cc CommandContext, args []string) (string, error) {
	emoji, err := ParseEmoji(args[0])
	if err != nil {
		return "", err
	}
	if err := s.store.RemoveEmojiRoleMapping(ctx, cc.GuildID, emoji.Key()); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ %s no longer toggles a role", formatEmoji(emoji.Key())), nil
}

func (s *CommandService) getRoleEmojis(_ context.Context, cc CommandContext, _ []string) (string, error) {
	cfg, err := s.store.GetConfig(cc.GuildID)
	if err != nil {
		return "", err
	}
	if len(cfg.EmojiRoles) == 0 {
		return "No emoji roles are configured", nil
	}

	var b strings.Builder
	b.WriteString("Emoji roles:")
	for _, emoji := range cfg.EmojiKeys() {
		fmt.Fprintf(&b, "\n%s → <@&%s>", formatEmoji(emoji), cfg.EmojiRoles[emoji])
	}
	return b.String(), nil
}

func (s *CommandService) setBaseRole(ctx context.Context, cc CommandContext, args []string) (string, error) {
	roleID, err := ParseRoleID(args[0])
	if err != nil {
		return "", err
	}
	if err := s.store.SetBaseRole(ctx, cc.GuildID, roleID); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Base role set to <@&%s>", roleID), nil
}

func (s *CommandService) delBaseRole(ctx context.Context, cc CommandContext, _ []string) (string, error) {
	if err := s.store.ClearBaseRole(ctx, cc.GuildID); err != nil {
		return "", err
	}
	return "✅ Base role removed", nil
}

func (s *CommandService) getBaseRole(_ context.Context, cc CommandContext, _ []string) (string, error) {
	cfg, err := s.store.GetConfig(cc.GuildID)
	if err != nil {
		return "", err
	}
	if cfg.BaseRoleID == "" {
		return "No base role is configured", nil
	}
	return fmt.Sprintf("Base role: <@&%s>", cfg.BaseRoleID), nil
}

func (s *CommandService) forget(ctx context.Context, cc CommandContext, _ []string) (string, error) {
	if err := s.store.ForgetGuild(ctx, cc.GuildID); err != nil {
		return "", err
	}
	return "✅ All settings for this server were removed", nil
}

func (s *CommandService) help(_ context.Context, _ CommandContext, _ []string) (string, error) {
	names := []string{
		"set_rules", "del_rules", "get_rules",
		"set_roles_msg", "del_roles", "get_roles",
		"set_role_emoji", "del_role_emoji", "get_role_emojis",
		"set_base_role", "del_base_role", "get_base_role",
		"forget",
	}

	var b strings.Builder
	b.WriteString("Commands:")
	for _, name := range names {
		fmt.Fprintf(&b, "\n`%s%s`", s.prefix, s.commands[name].usage)
	}
	return b.String(), nil
}

var (
	snowflakePattern   = regexp.MustCompile(`^[0-9]{1,20}$`)
	roleMentionPattern = regexp.MustCompile(`^<@&([0-9]{1,20})>$`)
	customEmojiPattern = regexp.MustCompile(`^<a?:(\w+):([0-9]{1,20})>$`)
	emojiAPIPattern    = regexp.MustCompile(`^(\w+):([0-9]{1,20})$`)
	messageLinkPattern = regexp.MustCompile(`^https://(?:\w+\.)?discord(?:app)?\.com/channels/[0-9]+/[0-9]+/([0-9]{1,20})$`)
)

// ParseMessageID accepts a message ID or a message link
func ParseMessageID(arg string) (string, error) {
	if snowflakePattern.MatchString(arg) {
		return arg, nil
	}
	if m := messageLinkPattern.FindStringSubmatch(arg); m != nil {
		return m[1], nil
	}
	return "", badInput("%q is not a message ID", arg)
}

// ParseRoleID accepts a role ID or a role mention
func ParseRoleID(arg string) (string, error) {
	if snowflakePattern.MatchString(arg) {
		return arg, nil
	}
	if m := roleMentionPattern.FindStringSubmatch(arg); m != nil {
		return m[1], nil
	}
	return "", badInput("%q is not a role ID", arg)
}

// ParseEmoji accepts custom emoji markup (<:name:id>), name:id, a bare emoji ID,
// or a literal unicode emoji
func ParseEmoji(arg string) (models.Emoji, error) {
	if m := customEmojiPattern.FindStringSubmatch(arg); m != nil {
		return models.Emoji{ID: m[2], Name: m[1]}, nil
	}
	if m := emojiAPIPattern.FindStringSubmatch(arg); m != nil {
		return models.Emoji{ID: m[2], Name: m[1]}, nil
	}
	if snowflakePattern.MatchString(arg) {
		return models.Emoji{ID: arg}, nil
	}
	if isUnicodeEmoji(arg) {
		return models.Emoji{Name: arg}, nil
	}
	return models.Emoji{}, badInput("%q is not an emoji", arg)
}

const (
	variationSelector16 = '\uFE0F'
	combiningKeycap     = '\u20E3'
)

// isUnicodeEmoji reports whether s looks like a single unicode emoji sequence:
// symbols with modifiers, joiners and tags, or a keycap/presentation base such
// as 1️⃣ or ‼️. Plain letters and punctuation are rejected.
func isUnicodeEmoji(s string) bool {
	if s == "" || !utf8.ValidString(s) {
		return false
	}

	runes := []rune(s)
	hasSymbol := false
	for i, r := range runes {
		switch {
		case unicode.Is(unicode.So, r):
			hasSymbol = true
		case r == variationSelector16 || r == combiningKeycap:
			hasSymbol = true
		case unicode.In(r, unicode.Sk, unicode.Mn, unicode.Me, unicode.Cf):
		case i == 0 && len(runes) > 1 && (runes[1] == variationSelector16 || runes[1] == combiningKeycap):
			// keycap or text-presentation base
		default:
			return false
		}
	}
	return hasSymbol
}

// formatEmoji renders an emoji key for chat; custom emoji keys are bare IDs
func formatEmoji(key string) string {
	if snowflakePattern.MatchString(key) {
		return fmt.Sprintf("<:emoji:%s>", key)
	}
	return key
}
