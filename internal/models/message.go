package models

import "time"

// Senders recorded on transcript messages. Anything other than the bot
// sender is treated as a user turn when a prompt is built.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Message is a single transcript entry. Messages are immutable once
// appended; slice order is the conversation order.
type Message struct {
	Sender    string    `json:"sender" bson:"sender"`
	Text      string    `json:"text" bson:"text"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// NewUserMessage builds a user-authored message stamped with the current time.
func NewUserMessage(text string) Message {
	return Message{Sender: SenderUser, Text: text, Timestamp: time.Now().UTC()}
}

// NewBotMessage builds a bot-authored message stamped with the current time.
func NewBotMessage(text string) Message {
	return Message{Sender: SenderBot, Text: text, Timestamp: time.Now().UTC()}
}
