package models

import "time"

// ConversationHistory is the stored transcript of one chat session,
// upserted by chat_id when the session ends.
type ConversationHistory struct {
	ClientID  string    `json:"client_id" bson:"client_id"`
	ConfigID  string    `json:"config_id" bson:"config_id"`
	ChatID    string    `json:"chat_id" bson:"chat_id"`
	BotName   string    `json:"bot_name" bson:"bot_name"`
	Messages  []Message `json:"messages" bson:"messages"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}
