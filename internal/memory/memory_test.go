package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"schedbot/internal/domain"
	"schedbot/internal/llm"
)

type fakeLLM struct {
	reply      string
	err        error
	lastPrompt string
	calls      int
}

func (f *fakeLLM) Generate(ctx context.Context, messages []llm.Message) (llm.Response, error) {
	f.calls++
	if len(messages) > 0 {
		f.lastPrompt = messages[len(messages)-1].Content
	}
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Content: f.reply}, nil
}

func (f *fakeLLM) GenerateWithTools(ctx context.Context, messages []llm.Message, tools []llm.Tool) (llm.Response, error) {
	return f.Generate(ctx, messages)
}

func convMessages(n int) []domain.Message {
	out := make([]domain.Message, 0, n)
	for i := 0; i < n; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		out = append(out, domain.Message{Role: role, Content: fmt.Sprintf("msg-%02d", i)})
	}
	return out
}

func TestSummarizerBelowThresholdIsNoop(t *testing.T) {
	client := &fakeLLM{reply: "summary"}
	s := NewSummarizer(client, 6, 4)
	conv := &domain.Conversation{}

	_, changed, err := s.Maintain(context.Background(), conv, convMessages(6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Fatal("expected no summary at exactly the threshold")
	}
	if client.calls != 0 {
		t.Fatalf("expected no LLM calls, got %d", client.calls)
	}
}

func TestSummarizerFirstSummaryExcludesFreshExchange(t *testing.T) {
	client := &fakeLLM{reply: "first summary"}
	s := NewSummarizer(client, 6, 4)
	conv := &domain.Conversation{}
	messages := convMessages(7)

	summary, changed, err := s.Maintain(context.Background(), conv, messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed || summary != "first summary" {
		t.Fatalf("expected a first summary, got changed=%v summary=%q", changed, summary)
	}
	// The last two messages are kept out of the condensed head.
	for _, m := range messages[len(messages)-2:] {
		if strings.Contains(client.lastPrompt, m.Content) {
			t.Errorf("fresh message %q should not be in the summary prompt", m.Content)
		}
	}
	if !strings.Contains(client.lastPrompt, messages[0].Content) {
		t.Error("oldest message missing from the summary prompt")
	}
}

func TestSummarizerUpdateUsesTailOnly(t *testing.T) {
	client := &fakeLLM{reply: "updated summary"}
	s := NewSummarizer(client, 6, 4)
	conv := &domain.Conversation{Summary: "existing summary"}
	messages := convMessages(10)

	summary, changed, err := s.Maintain(context.Background(), conv, messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed || summary != "updated summary" {
		t.Fatalf("expected an updated summary, got changed=%v summary=%q", changed, summary)
	}
	if !strings.Contains(client.lastPrompt, "existing summary") {
		t.Error("previous summary missing from the update prompt")
	}
	if strings.Contains(client.lastPrompt, messages[0].Content) {
		t.Error("old message leaked into the tail-only update prompt")
	}
	if !strings.Contains(client.lastPrompt, messages[len(messages)-1].Content) {
		t.Error("latest message missing from the update prompt")
	}
}

func TestSummarizerPropagatesFailure(t *testing.T) {
	client := &fakeLLM{err: errors.New("llm down")}
	s := NewSummarizer(client, 6, 4)

	_, changed, err := s.Maintain(context.Background(), &domain.Conversation{}, convMessages(8))
	if err == nil || changed {
		t.Fatalf("expected an error and no summary, got changed=%v err=%v", changed, err)
	}
}

func TestWindowKeepsRecent(t *testing.T) {
	msgs := []llm.Message{
		{Role: llm.RoleUser, Content: "1"},
		{Role: llm.RoleAssistant, Content: "2"},
		{Role: llm.RoleUser, Content: "3"},
		{Role: llm.RoleAssistant, Content: "4"},
	}
	got := Window(msgs, 2)
	if len(got) != 2 || got[0].Content != "3" {
		t.Fatalf("expected the last two messages, got %v", got)
	}
	if got := Window(msgs, 10); len(got) != 4 {
		t.Fatalf("expected all messages under the cap, got %d", len(got))
	}
}

func TestWindowKeepsToolExchangePaired(t *testing.T) {
	msgs := []llm.Message{
		{Role: llm.RoleUser, Content: "book it"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c1"}}},
		{Role: llm.RoleTool, Content: "done", ToolCallID: "c1"},
		{Role: llm.RoleAssistant, Content: "booked"},
	}
	got := Window(msgs, 2)
	if got[0].Role == llm.RoleTool {
		t.Fatal("window must not start with an orphaned tool message")
	}
	if len(got) != 3 {
		t.Fatalf("expected the window to back up over the tool message, got %d entries", len(got))
	}
}

func TestProfileMergeCapsLists(t *testing.T) {
	p := Profile{PreferredServices: []string{"a", "b", "c"}}
	p.Merge(Profile{PreferredServices: []string{"d", "e", "c"}}, 3)

	// Union keeps order and dedupes, then keeps the most recent three.
	want := []string{"c", "d", "e"}
	if len(p.PreferredServices) != 3 {
		t.Fatalf("expected 3 services, got %v", p.PreferredServices)
	}
	for i, v := range want {
		if p.PreferredServices[i] != v {
			t.Fatalf("expected %v, got %v", want, p.PreferredServices)
		}
	}
}

func TestProfileMergeScalarOverwriteOnlyNonEmpty(t *testing.T) {
	p := Profile{FullName: "Ana Torres"}
	p.Merge(Profile{FullName: "", IdentificationNumber: "0912345678"}, 5)
	if p.FullName != "Ana Torres" {
		t.Errorf("empty update must not clear full_name, got %q", p.FullName)
	}
	if p.IdentificationNumber != "0912345678" {
		t.Errorf("non-empty update must set identification_number, got %q", p.IdentificationNumber)
	}
	if p.FirstInteraction == "" || p.LastInteraction == "" {
		t.Error("merge should stamp interaction times")
	}
}

func TestProfileRecordAppointment(t *testing.T) {
	var p Profile
	p.RecordAppointment("Corte de cabello", "Maria", "2026-09-10", "10:30", 5)

	if p.TotalAppointments != 1 {
		t.Errorf("expected 1 appointment, got %d", p.TotalAppointments)
	}
	if p.LastAppointmentService != "Corte de cabello" || p.LastAppointmentDate != "2026-09-10" {
		t.Errorf("last appointment fields not set: %+v", p)
	}
	if len(p.PreferredTimeSlots) != 1 || p.PreferredTimeSlots[0] != "morning" {
		t.Errorf("10:30 should record a morning preference, got %v", p.PreferredTimeSlots)
	}

	p.RecordAppointment("Corte de cabello", "Maria", "2026-09-12", "15:00", 5)
	if p.TotalAppointments != 2 {
		t.Errorf("expected 2 appointments, got %d", p.TotalAppointments)
	}
	if len(p.PreferredServices) != 1 {
		t.Errorf("repeat service must not duplicate, got %v", p.PreferredServices)
	}
	if len(p.PreferredTimeSlots) != 2 {
		t.Errorf("expected morning and afternoon, got %v", p.PreferredTimeSlots)
	}
}

func TestParseProfileMalformed(t *testing.T) {
	if _, err := ParseProfile([]byte("{not json")); err == nil {
		t.Fatal("expected an error for a malformed blob")
	}
	p, err := ParseProfile(nil)
	if err != nil || p.TotalAppointments != 0 {
		t.Fatalf("empty blob should parse to a zero profile, got %+v err=%v", p, err)
	}
}

func TestExtractorDiscardsMalformedOutput(t *testing.T) {
	client := &fakeLLM{reply: "sorry, I cannot do that"}
	e := NewExtractor(client)

	if _, err := e.Extract(context.Background(), "summary", Profile{}); err == nil {
		t.Fatal("expected malformed extraction output to be discarded with an error")
	}
}

func TestExtractorStripsCodeFences(t *testing.T) {
	client := &fakeLLM{reply: "```json\n{\"full_name\": \"Ana Torres\"}\n```"}
	e := NewExtractor(client)

	updates, err := e.Extract(context.Background(), "summary", Profile{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updates.FullName != "Ana Torres" {
		t.Fatalf("expected extracted name, got %+v", updates)
	}
}

func TestShouldCheckpoint(t *testing.T) {
	cases := []struct {
		count int
		want  bool
	}{
		{5, false},
		{9, false},
		{10, true},
		{12, false},
		{15, true},
		{20, true},
	}
	for _, c := range cases {
		if got := ShouldCheckpoint(c.count, 10, 5); got != c.want {
			t.Errorf("ShouldCheckpoint(%d, 10, 5) = %v, want %v", c.count, got, c.want)
		}
	}
	if ShouldCheckpoint(10, 10, 0) {
		t.Error("zero interval must never checkpoint")
	}
}
