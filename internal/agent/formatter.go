package agent

import (
	"strings"

	"chatrelay/internal/models"

	"github.com/cloudwego/eino/schema"
)

// mergeBotRuns collapses each maximal run of consecutive bot messages into
// a single message whose text is the space-joined run and whose remaining
// fields come from the run's last message. Non-bot messages pass through
// unchanged.
func mergeBotRuns(messages []models.Message) []models.Message {
	merged := make([]models.Message, 0, len(messages))
	for idx := 0; idx < len(messages); {
		if messages[idx].Sender != models.SenderBot {
			merged = append(merged, messages[idx])
			idx++
			continue
		}
		start := idx
		for idx < len(messages) && messages[idx].Sender == models.SenderBot {
			idx++
		}
		run := messages[start:idx]
		texts := make([]string, len(run))
		for i, msg := range run {
			texts[i] = msg.Text
		}
		mergedMsg := run[len(run)-1]
		mergedMsg.Text = strings.Join(texts, " ")
		merged = append(merged, mergedMsg)
	}
	return merged
}

// FormatTranscript maps a transcript to the role-tagged prompt sent to the
// completion endpoint: an optional system preamble first, then the merged
// transcript in chronological order with bot messages as assistant turns
// and everything else as user turns.
func FormatTranscript(preamble string, messages []models.Message) []*schema.Message {
	prompt := make([]*schema.Message, 0, len(messages)+1)
	if preamble != "" {
		prompt = append(prompt, &schema.Message{Role: schema.System, Content: preamble})
	}
	for _, msg := range mergeBotRuns(messages) {
		role := schema.User
		if msg.Sender == models.SenderBot {
			role = schema.Assistant
		}
		prompt = append(prompt, &schema.Message{Role: role, Content: msg.Text})
	}
	return prompt
}
