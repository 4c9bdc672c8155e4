package agent

import (
	"context"
	"errors"
	"fmt"

	"chatrelay/internal/models"

	"github.com/cloudwego/eino/components/model"
)

// Agent binds one agent configuration and a live transcript to the
// completion endpoint. It is owned by a single session and not safe for
// concurrent use.
type Agent struct {
	cfg       models.AgentConfig
	chatModel model.BaseChatModel
	messages  []models.Message
}

// New builds an agent seeded with any previously persisted transcript.
func New(cfg models.AgentConfig, chatModel model.BaseChatModel, history []models.Message) *Agent {
	messages := make([]models.Message, len(history))
	copy(messages, history)
	return &Agent{cfg: cfg, chatModel: chatModel, messages: messages}
}

// Messages returns the accumulated transcript in conversation order.
func (a *Agent) Messages() []models.Message {
	return a.messages
}

// GenerateResponse appends the incoming message and, for user turns,
// invokes the completion endpoint exactly once, appending and returning
// the generated bot message. Bot-sender input is appended but returns nil
// without calling the endpoint, so injected initial bot messages seed the
// transcript without triggering a completion.
func (a *Agent) GenerateResponse(ctx context.Context, incoming models.Message) (*models.Message, error) {
	a.messages = append(a.messages, incoming)
	if incoming.Sender == models.SenderBot {
		return nil, nil
	}

	prompt := FormatTranscript(a.cfg.PromptPreamble, a.messages)
	reply, err := a.chatModel.Generate(ctx, prompt,
		model.WithModel(a.cfg.ModelName),
		model.WithMaxTokens(a.cfg.MaxTokens),
		model.WithTemperature(float32(a.cfg.Temperature)),
	)
	if err != nil {
		return nil, fmt.Errorf("generate completion: %w", err)
	}
	if reply == nil {
		return nil, errors.New("completion endpoint returned no message")
	}

	botMessage := models.NewBotMessage(reply.Content)
	a.messages = append(a.messages, botMessage)
	return &botMessage, nil
}
