package memory

import "schedbot/internal/llm"

// Window returns the most recent max messages, dropping oldest first.
// This is the tier-1 view: raw recent messages bounded for prompt size.
// Tool exchanges stay paired: a tool message never becomes the first
// entry, since it needs the assistant message carrying its call.
func Window(messages []llm.Message, max int) []llm.Message {
	if max <= 0 || len(messages) <= max {
		return messages
	}
	start := len(messages) - max
	for start > 0 && messages[start].Role == llm.RoleTool {
		start--
	}
	return messages[start:]
}
