package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"neodymium/events"
	"neodymium/models"

	log "github.com/sirupsen/logrus"
)

// GuildConfigStore keeps every guild configuration in memory and writes each
// change through to the repository before it becomes visible.
//
// Published configurations are never modified in place: a mutation clones the
// current record, persists the clone and then swaps it in. Readers therefore
// never block on storage, and a failed write leaves the old record untouched.
type GuildConfigStore struct {
	repo GuildConfigRepository
	bus  *events.Bus

	mu      sync.RWMutex
	configs map[string]*models.GuildConfig
	locks   map[string]*sync.Mutex // serializes mutations per guild
}

var _ GuildConfigService = (*GuildConfigStore)(nil)

// NewGuildConfigStore creates a store backed by repo. bus may be nil.
func NewGuildConfigStore(repo GuildConfigRepository, bus *events.Bus) *GuildConfigStore {
	return &GuildConfigStore{
		repo:    repo,
		bus:     bus,
		configs: make(map[string]*models.GuildConfig),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Load reads all persisted configurations into memory, replacing any record
// already held for the same guild.
func (s *GuildConfigStore) Load(ctx context.Context) error {
	configs, err := s.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load guild configurations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cfg := range configs {
		s.configs[cfg.GuildID()] = cfg.Clone()
	}

	log.WithFields(log.Fields{
		"guildCount": len(configs),
	}).Info("Loaded guild configurations")

	return nil
}

// GetConfig returns a copy of a guild's configuration
func (s *GuildConfigStore) GetConfig(guildID string) (*models.GuildConfig, error) {
	s.mu.RLock()
	cfg, ok := s.configs[guildID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, guildID)
	}
	return cfg.Clone(), nil
}

// RegisterGuild creates an empty configuration for a guild if none exists.
// It reports whether a new record was created.
func (s *GuildConfigStore) RegisterGuild(guildID string) (bool, error) {
	if guildID == "" {
		return false, badInput("guild ID is required")
	}

	s.mu.Lock()
	if _, ok := s.configs[guildID]; ok {
		s.mu.Unlock()
		return false, nil
	}
	s.configs[guildID] = models.NewGuildConfig(guildID)
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Emit(context.Background(), events.GuildRegisteredEvent{GuildID: guildID})
	}
	return true, nil
}

// Guilds returns the registered guild IDs in sorted order
func (s *GuildConfigStore) Guilds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.configs))
	for id := range s.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetRulesMessage sets the message members acknowledge to receive the base role
func (s *GuildConfigStore) SetRulesMessage(ctx context.Context, guildID, messageID string) error {
	if messageID == "" {
		return badInput("message ID is required")
	}
	return s.mutate(ctx, guildID, "set_rules_message", func(cfg *models.GuildConfig) error {
		cfg.RulesMessageID = messageID
		return nil
	})
}

// ClearRulesMessage removes the rules message
func (s *GuildConfigStore) ClearRulesMessage(ctx context.Context, guildID string) error {
	return s.mutate(ctx, guildID, "clear_rules_message", func(cfg *models.GuildConfig) error {
		cfg.RulesMessageID = ""
		return nil
	})
}

// SetRolesMessage sets the message used for self-service role selection
func (s *GuildConfigStore) SetRolesMessage(ctx context.Context, guildID, messageID string) error {
	if messageID == "" {
		return badInput("message ID is required")
	}
	return s.mutate(ctx, guildID, "set_roles_message", func(cfg *models.GuildConfig) error {
		cfg.RolesMessageID = messageID
		return nil
	})
}

// ClearRolesMessage removes the roles message
func (s *GuildConfigStore) ClearRolesMessage(ctx context.Context, guildID string) error {
	return s.mutate(ctx, guildID, "clear_roles_message", func(cfg *models.GuildConfig) error {
		cfg.RolesMessageID = ""
		return nil
	})
}

// SetBaseRole sets the role granted when the rules are acknowledged
func (s *GuildConfigStore) SetBaseRole(ctx context.Context, guildID, roleID string) error {
	if roleID == "" {
		return badInput("role ID is required")
	}
	return s.mutate(ctx, guildID, "set_base_role", func(cfg *models.GuildConfig) error {
		cfg.BaseRoleID = roleID
		return nil
	})
}

// ClearBaseRole removes the base role
func (s *GuildConfigStore) ClearBaseRole(ctx context.Context, guildID string) error {
	return s.mutate(ctx, guildID, "clear_base_role", func(cfg *models.GuildConfig) error {
		cfg.BaseRoleID = ""
		return nil
	})
}

// AddEmojiRoleMapping maps an emoji on the roles message to a role.
// An emoji that is already mapped is never remapped; ErrConflict is returned instead.
func (s *GuildConfigStore) AddEmojiRoleMapping(ctx context.Context, guildID, emojiKey, roleID string) error {
	if emojiKey == "" || roleID == "" {
		return badInput("emoji and role are required")
	}
	return s.mutate(ctx, guildID, "add_emoji_role", func(cfg *models.GuildConfig) error {
		if existing, ok := cfg.EmojiRoles[emojiKey]; ok {
			return fmt.Errorf("%w: %s is mapped to role %s", ErrConflict, emojiKey, existing)
		}
		cfg.EmojiRoles[emojiKey] = roleID
		return nil
	})
}

// RemoveEmojiRoleMapping removes an emoji mapping. Removing an unmapped emoji is a no-op.
func (s *GuildConfigStore) RemoveEmojiRoleMapping(ctx context.Context, guildID, emojiKey string) error {
	return s.mutate(ctx, guildID, "remove_emoji_role", func(cfg *models.GuildConfig) error {
		if _, ok := cfg.EmojiRoles[emojiKey]; !ok {
			return errNoChange
		}
		delete(cfg.EmojiRoles, emojiKey)
		return nil
	})
}

// ForgetGuild resets a guild to an empty configuration and deletes its stored data.
// The guild stays registered.
func (s *GuildConfigStore) ForgetGuild(ctx context.Context, guildID string) error {
	return s.mutate(ctx, guildID, "forget", func(cfg *models.GuildConfig) error {
		*cfg = *models.NewGuildConfig(cfg.GuildID())
		return nil
	})
}

// errNoChange lets a mutation report success without writing anything
var errNoChange = errors.New("no change")

func (s *GuildConfigStore) guildLock(guildID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[guildID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[guildID] = lock
	}
	return lock
}

// mutate applies fn to a copy of the guild's configuration, persists the copy
// and publishes it. Empty configurations are deleted from storage instead of saved.
func (s *GuildConfigStore) mutate(ctx context.Context, guildID, operation string, fn func(cfg *models.GuildConfig) error) error {
	lock := s.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current, ok := s.configs[guildID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, guildID)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}

	txBus := events.NewTransactionalBus(s.bus)
	txBus.Publish(events.GuildConfigChangedEvent{GuildID: guildID, Operation: operation})

	var err error
	if next.IsEmpty() {
		err = s.repo.Delete(ctx, guildID)
	} else {
		err = s.repo.Save(ctx, next)
	}
	if err != nil {
		txBus.Discard()
		log.WithFields(log.Fields{
			"guildID":   guildID,
			"operation": operation,
			"error":     err,
		}).Error("Failed to persist guild configuration")
		return fmt.Errorf("%w for guild %s: %w", ErrPersistence, guildID, err)
	}

	s.mu.Lock()
	s.configs[guildID] = next
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"guildID":   guildID,
		"operation": operation,
	}).Info("Guild configuration updated")

	// Subscribers outlive the request, so they get a fresh context
	txBus.Flush(context.Background())
	return nil
}
