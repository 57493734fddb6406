package service

import (
	"context"
	"errors"
	"fmt"

	"neodymium/events"
	"neodymium/models"

	log "github.com/sirupsen/logrus"
)

// ReactionResult describes what handling a reaction did
type ReactionResult struct {
	Action models.Action
	Change models.RoleChange
	RoleID string
}

// ReactionService turns reaction events into role grants and revocations
type ReactionService struct {
	store    GuildConfigService
	platform Platform
	bus      *events.Bus
	metrics  Metrics
}

// NewReactionService creates a reaction service. bus and metrics may be nil.
func NewReactionService(store GuildConfigService, platform Platform, bus *events.Bus, metrics Metrics) *ReactionService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ReactionService{
		store:    store,
		platform: platform,
		bus:      bus,
		metrics:  metrics,
	}
}

// HandleReaction classifies a reaction and applies the resulting role change.
// Platform failures are returned, never retried.
func (s *ReactionService) HandleReaction(ctx context.Context, ev models.ReactionEvent) (*ReactionResult, error) {
	ignore := &ReactionResult{Action: models.Action{Kind: models.ActionIgnore}, Change: models.RoleChangeNone}

	if ev.FromBot || !ev.Added {
		return ignore, nil
	}

	cfg, err := s.store.GetConfig(ev.GuildID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WithFields(log.Fields{
				"guildID":   ev.GuildID,
				"messageID": ev.MessageID,
			}).Info("Ignoring reaction from unregistered guild")
			s.metrics.RecordReaction(models.ActionIgnore)
			return ignore, nil
		}
		return nil, fmt.Errorf("failed to get guild config: %w", err)
	}

	action := Classify(cfg, ev.MessageID, ev.Emoji)
	s.metrics.RecordReaction(action.Kind)

	switch action.Kind {
	case models.ActionGrantBaseRole:
		return s.grantBaseRole(ctx, cfg, ev, action)
	case models.ActionToggleRole:
		return s.toggleRole(ctx, ev, action)
	default:
		return ignore, nil
	}
}

func (s *ReactionService) grantBaseRole(ctx context.Context, cfg *models.GuildConfig, ev models.ReactionEvent, action models.Action) (*ReactionResult, error) {
	result := &ReactionResult{Action: action, Change: models.RoleChangeNone, RoleID: cfg.BaseRoleID}

	if cfg.BaseRoleID == "" {
		log.WithFields(log.Fields{
			"guildID":  ev.GuildID,
			"memberID": ev.MemberID,
		}).Warn("Rules acknowledged but no base role is configured")
		return result, nil
	}

	if ev.HasRole(cfg.BaseRoleID) {
		return result, nil
	}

	if err := s.platform.GrantRole(ctx, ev.GuildID, ev.MemberID, cfg.BaseRoleID); err != nil {
		s.metrics.RecordRoleChange(models.RoleChangeGranted, err)
		return nil, fmt.Errorf("failed to grant base role %s to %s: %w", cfg.BaseRoleID, ev.MemberID, err)
	}
	s.metrics.RecordRoleChange(models.RoleChangeGranted, nil)

	result.Change = models.RoleChangeGranted
	s.publish(ev, result)
	return result, nil
}

func (s *ReactionService) toggleRole(ctx context.Context, ev models.ReactionEvent, action models.Action) (*ReactionResult, error) {
	result := &ReactionResult{Action: action, RoleID: action.RoleID}

	var err error
	if ev.HasRole(action.RoleID) {
		result.Change = models.RoleChangeRevoked
		err = s.platform.RevokeRole(ctx, ev.GuildID, ev.MemberID, action.RoleID)
	} else {
		result.Change = models.RoleChangeGranted
		err = s.platform.GrantRole(ctx, ev.GuildID, ev.MemberID, action.RoleID)
	}
	s.metrics.RecordRoleChange(result.Change, err)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle role %s for %s: %w", action.RoleID, ev.MemberID, err)
	}

	// Clear the member's reaction so the emoji can be used again
	if err := s.platform.RemoveReaction(ctx, ev.ChannelID, ev.MessageID, ev.Emoji.APIName(), ev.MemberID); err != nil {
		log.WithFields(log.Fields{
			"guildID":   ev.GuildID,
			"messageID": ev.MessageID,
			"emoji":     ev.Emoji.Key(),
			"error":     err,
		}).Warn("Failed to remove reaction from roles message")
	}

	s.publish(ev, result)
	return result, nil
}

func (s *ReactionService) publish(ev models.ReactionEvent, result *ReactionResult) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(context.Background(), events.RoleChangedEvent{
		GuildID:  ev.GuildID,
		MemberID: ev.MemberID,
		RoleID:   result.RoleID,
		Change:   string(result.Change),
		Source:   string(result.Action.Kind),
	})
}
