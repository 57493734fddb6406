package service

import (
	"context"
	"fmt"
)

// WelcomeService greets members joining a guild
type WelcomeService struct {
	platform Platform
}

// NewWelcomeService creates a welcome service
func NewWelcomeService(platform Platform) *WelcomeService {
	return &WelcomeService{platform: platform}
}

// WelcomeMessage returns the greeting posted for a new member
func WelcomeMessage(memberID, guildName string) string {
	return fmt.Sprintf("Hello <@%s> and welcome to %s!\nRemember to read the rules before engaging with the server.", memberID, guildName)
}

// GreetMember posts the welcome message to channelID. Guilds without a
// system channel are skipped.
func (s *WelcomeService) GreetMember(ctx context.Context, channelID, memberID, guildName string) error {
	if channelID == "" {
		return nil
	}
	if err := s.platform.SendMessage(ctx, channelID, WelcomeMessage(memberID, guildName)); err != nil {
		return fmt.Errorf("failed to send welcome message: %w", err)
	}
	return nil
}
