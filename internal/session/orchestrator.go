package session

import (
	"context"
	"errors"
	"time"

	"chatrelay/internal/agent"
	"chatrelay/internal/models"
	"chatrelay/internal/storage"

	"github.com/cloudwego/eino/components/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	closeWriteTimeout = time.Second
	persistTimeout    = 10 * time.Second
)

// ConfigStore loads the agent configuration bound to a session.
type ConfigStore interface {
	Get(ctx context.Context, clientID, configID string) (*models.ClientAgentConfig, error)
}

// ConversationStore loads and persists chat transcripts.
type ConversationStore interface {
	Load(ctx context.Context, clientID, configID, chatID string) (*models.ConversationHistory, error)
	Save(ctx context.Context, hist *models.ConversationHistory) error
}

// Conn is the websocket surface the orchestrator drives.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Orchestrator binds accepted websocket connections to conversations:
// it loads configuration and prior transcript, plays configured initial
// messages, relays user turns through the agent, and persists the
// transcript when the session ends.
type Orchestrator struct {
	configs       ConfigStore
	conversations ConversationStore
	chatModel     model.BaseChatModel
	log           zerolog.Logger
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(configs ConfigStore, conversations ConversationStore, chatModel model.BaseChatModel) *Orchestrator {
	return &Orchestrator{
		configs:       configs,
		conversations: conversations,
		chatModel:     chatModel,
		log:           log.With().Str("component", "session").Logger(),
	}
}

// Run drives one chat session over an already-accepted connection and
// blocks until the peer disconnects or the session fails. The connection
// is always closed before returning.
func (o *Orchestrator) Run(ctx context.Context, conn Conn, clientID, configID, chatID string) {
	sessionLog := o.log.With().
		Str("session_id", uuid.NewString()).
		Str("client_id", clientID).
		Str("config_id", configID).
		Str("chat_id", chatID).
		Logger()

	clientConfig, err := o.configs.Get(ctx, clientID, configID)
	if err != nil {
		if errors.Is(err, storage.ErrConfigNotFound) {
			sessionLog.Warn().Msg("bot config not found, closing session")
			closeWithReason(conn, "No such bot config found")
			return
		}
		sessionLog.Error().Err(err).Msg("load bot config failed")
		closeWithReason(conn, "internal error")
		return
	}
	agentConfig := clientConfig.AgentConfig

	history, err := o.conversations.Load(ctx, clientID, configID, chatID)
	if err != nil {
		sessionLog.Error().Err(err).Msg("load conversation failed")
		closeWithReason(conn, "internal error")
		return
	}

	chatAgent := agent.New(agentConfig, o.chatModel, history.Messages)
	defer o.persist(chatAgent, clientConfig, clientID, configID, chatID, sessionLog)

	if len(history.Messages) == 0 {
		if agentConfig.UserInitialMessage != "" {
			reply, err := chatAgent.GenerateResponse(ctx, models.NewUserMessage(agentConfig.UserInitialMessage))
			if err != nil {
				sessionLog.Error().Err(err).Msg("initial completion failed")
				closeWithReason(conn, "internal error")
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply.Text)); err != nil {
				sessionLog.Warn().Err(err).Msg("send initial reply failed")
				_ = conn.Close()
				return
			}
		}
		if agentConfig.BotInitialMessage != "" {
			// Appends to the transcript only; the generator short-circuits
			// on bot-sender input so no completion call is made.
			if _, err := chatAgent.GenerateResponse(ctx, models.NewBotMessage(agentConfig.BotInitialMessage)); err != nil {
				sessionLog.Error().Err(err).Msg("seed bot message failed")
				closeWithReason(conn, "internal error")
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(agentConfig.BotInitialMessage)); err != nil {
				sessionLog.Warn().Err(err).Msg("send initial bot message failed")
				_ = conn.Close()
				return
			}
		}
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			sessionLog.Debug().Err(err).Msg("peer disconnected")
			_ = conn.Close()
			return
		}
		if msgType != websocket.TextMessage || len(data) == 0 {
			continue
		}
		reply, err := chatAgent.GenerateResponse(ctx, models.NewUserMessage(string(data)))
		if err != nil {
			sessionLog.Error().Err(err).Msg("completion failed")
			closeWithReason(conn, "internal error")
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply.Text)); err != nil {
			sessionLog.Warn().Err(err).Msg("send reply failed")
			_ = conn.Close()
			return
		}
	}
}

// persist upserts the accumulated transcript. The session is ending
// regardless, so failures are only surfaced to the log.
func (o *Orchestrator) persist(chatAgent *agent.Agent, clientConfig *models.ClientAgentConfig, clientID, configID, chatID string, sessionLog zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	hist := &models.ConversationHistory{
		ClientID: clientID,
		ConfigID: configID,
		ChatID:   chatID,
		BotName:  clientConfig.BotName,
		Messages: chatAgent.Messages(),
	}
	if err := o.conversations.Save(ctx, hist); err != nil {
		sessionLog.Error().Err(err).Msg("persist conversation failed")
		return
	}
	sessionLog.Info().Int("messages", len(hist.Messages)).Msg("conversation persisted")
}

func closeWithReason(conn Conn, reason string) {
	deadline := time.Now().Add(closeWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason), deadline)
	_ = conn.Close()
}
