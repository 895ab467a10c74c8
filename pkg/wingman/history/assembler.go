// Package history converts stored transcript messages into the
// role-tagged turn sequence expected by AI providers.
//
// Providers require histories to alternate starting with a user turn,
// so assembly normalizes the window: messages authored by the bot map
// to the assistant role, empty messages are dropped, and a leading
// assistant turn is relabeled to user.
package history

import "strings"

// Role identifies who produced a turn.
type Role string

const (
	// RoleUser marks a turn authored by a human participant.
	RoleUser Role = "user"

	// RoleAssistant marks a turn authored by the bot.
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged unit of conversation history.
type Turn struct {
	Role Role
	Text string
}

// Record is a stored message as the transcript layer sees it.
type Record struct {
	// Author is the platform identifier of the sender.
	Author string

	// FromBot indicates the message was sent by the bot itself.
	FromBot bool

	// Text is the raw message content.
	Text string
}

// Assemble builds a provider-ready turn sequence from stored records,
// oldest first. Only the most recent window records are considered.
// Turns whose text is empty after trimming are removed without
// reordering the rest. If the first remaining turn is assistant-origin
// it is relabeled to user. An empty window yields an empty sequence.
func Assemble(records []Record, window int) []Turn {
	if window <= 0 || len(records) == 0 {
		return nil
	}
	if len(records) > window {
		records = records[len(records)-window:]
	}

	turns := make([]Turn, 0, len(records))
	for _, rec := range records {
		text := strings.TrimSpace(rec.Text)
		if text == "" {
			continue
		}
		role := RoleUser
		if rec.FromBot {
			role = RoleAssistant
		}
		turns = append(turns, Turn{Role: role, Text: text})
	}

	if len(turns) > 0 && turns[0].Role == RoleAssistant {
		turns[0].Role = RoleUser
	}

	return turns
}
