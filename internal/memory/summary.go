package memory

import (
	"context"
	"fmt"
	"strings"

	"schedbot/internal/domain"
	"schedbot/internal/llm"
)

const summaryPrompt = `Summarize the following conversation, keeping the key points:
- User identity (name, ID document if mentioned)
- Services or appointments discussed
- Any stated preferences
- Current state of the conversation

Conversation:
%s

Concise summary (3-4 sentences at most):`

const updateSummaryPrompt = `You maintain a rolling summary of a conversation.

Previous summary:
%s

New messages:
%s

Updated summary incorporating the new information (3-4 sentences at most):`

// Summarizer maintains the tier-2 rolling summary of a conversation.
// The first trigger condenses everything but the last two messages; each
// later trigger folds only the most recent tail into the existing
// summary, so prompt size stays bounded however long the dialogue runs.
type Summarizer struct {
	llm       llm.Client
	threshold int // summarize once message count exceeds this
	tail      int // messages fed into an update
}

func NewSummarizer(client llm.Client, threshold, tail int) *Summarizer {
	if threshold <= 0 {
		threshold = 6
	}
	if tail <= 0 {
		tail = 4
	}
	return &Summarizer{llm: client, threshold: threshold, tail: tail}
}

// Maintain returns the new summary and true when one was generated. A
// count at or below the threshold is a no-op.
func (s *Summarizer) Maintain(ctx context.Context, conv *domain.Conversation, messages []domain.Message) (string, bool, error) {
	if len(messages) <= s.threshold {
		return "", false, nil
	}

	var prompt string
	if conv.Summary == "" {
		// First summary: everything except the freshest exchange.
		head := messages
		if len(head) > 2 {
			head = head[:len(head)-2]
		}
		prompt = fmt.Sprintf(summaryPrompt, formatTranscript(head))
	} else {
		tail := messages
		if len(tail) > s.tail {
			tail = tail[len(tail)-s.tail:]
		}
		prompt = fmt.Sprintf(updateSummaryPrompt, conv.Summary, formatTranscript(tail))
	}

	resp, err := s.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return "", false, fmt.Errorf("summary generation failed: %w", err)
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", false, fmt.Errorf("summary generation returned empty content")
	}
	return summary, true, nil
}

func formatTranscript(messages []domain.Message) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case domain.RoleUser:
			fmt.Fprintf(&b, "User: %s\n", m.Content)
		case domain.RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", m.Content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
