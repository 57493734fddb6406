package service

import (
	"context"

	"neodymium/models"

	"github.com/stretchr/testify/mock"
)

// MockGuildConfigRepository is a mock implementation of GuildConfigRepository
type MockGuildConfigRepository struct {
	mock.Mock
}

func (m *MockGuildConfigRepository) LoadAll(ctx context.Context) ([]*models.GuildConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.GuildConfig), args.Error(1)
}

func (m *MockGuildConfigRepository) Save(ctx context.Context, cfg *models.GuildConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockGuildConfigRepository) Delete(ctx context.Context, guildID string) error {
	args := m.Called(ctx, guildID)
	return args.Error(0)
}

// MockPlatform is a mock implementation of Platform
type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) GrantRole(ctx context.Context, guildID, memberID, roleID string) error {
	args := m.Called(ctx, guildID, memberID, roleID)
	return args.Error(0)
}

func (m *MockPlatform) RevokeRole(ctx context.Context, guildID, memberID, roleID string) error {
	args := m.Called(ctx, guildID, memberID, roleID)
	return args.Error(0)
}

func (m *MockPlatform) SendMessage(ctx context.Context, channelID, content string) error {
	args := m.Called(ctx, channelID, content)
	return args.Error(0)
}

func (m *MockPlatform) RemoveReaction(ctx context.Context, channelID, messageID, emoji, memberID string) error {
	args := m.Called(ctx, channelID, messageID, emoji, memberID)
	return args.Error(0)
}

// MockMetrics is a mock implementation of Metrics
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordReaction(action models.ActionKind) {
	m.Called(action)
}

func (m *MockMetrics) RecordRoleChange(change models.RoleChange, err error) {
	m.Called(change, err)
}

func (m *MockMetrics) RecordCommand(command string, err error) {
	m.Called(command, err)
}
