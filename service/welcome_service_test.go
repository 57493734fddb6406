package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestWelcomeService_GreetMember(t *testing.T) {
	ctx := context.Background()
	platform := new(MockPlatform)
	svc := NewWelcomeService(platform)

	platform.On("SendMessage", ctx, "sys", WelcomeMessage("u", "Guild")).Return(nil).Once()

	assert.NoError(t, svc.GreetMember(ctx, "sys", "u", "Guild"))
	platform.AssertExpectations(t)
}

func TestWelcomeService_NoSystemChannel(t *testing.T) {
	platform := new(MockPlatform)
	svc := NewWelcomeService(platform)

	assert.NoError(t, svc.GreetMember(context.Background(), "", "u", "Guild"))
	platform.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestWelcomeService_SendFailure(t *testing.T) {
	ctx := context.Background()
	platform := new(MockPlatform)
	svc := NewWelcomeService(platform)

	platform.On("SendMessage", ctx, "sys", mock.Anything).Return(errors.New("missing access"))

	assert.Error(t, svc.GreetMember(ctx, "sys", "u", "Guild"))
}

func TestWelcomeMessage(t *testing.T) {
	assert.Equal(t,
		"Hello <@42> and welcome to Neo!\nRemember to read the rules before engaging with the server.",
		WelcomeMessage("42", "Neo"))
}
