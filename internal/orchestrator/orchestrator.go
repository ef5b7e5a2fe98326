package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"schedbot/internal/domain"
	"schedbot/internal/llm"
	"schedbot/internal/memory"
	"schedbot/internal/storage"
	"schedbot/internal/tools"
)

type Config struct {
	// ConversationTimeout bounds how long a conversation stays selectable
	// after its last message.
	ConversationTimeout time.Duration
	// WindowTail is how many recent messages accompany the summary once
	// one exists.
	WindowTail int
	// MaxPromptMessages caps the history sent to the model on any turn.
	MaxPromptMessages int
	// MaxToolRounds bounds the assistant/tool loop within one turn.
	MaxToolRounds int
	// ProfileStart and ProfileEvery schedule profile checkpoints by
	// conversation message count.
	ProfileStart int
	ProfileEvery int
	// ProfileListMax caps each preference list in the profile.
	ProfileListMax int
	Timezone       *time.Location
}

func (c *Config) fill() {
	if c.ConversationTimeout <= 0 {
		c.ConversationTimeout = 24 * time.Hour
	}
	if c.WindowTail <= 0 {
		c.WindowTail = 10
	}
	if c.MaxPromptMessages <= 0 {
		c.MaxPromptMessages = 30
	}
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = 8
	}
	if c.ProfileStart <= 0 {
		c.ProfileStart = 10
	}
	if c.ProfileEvery <= 0 {
		c.ProfileEvery = 5
	}
	if c.ProfileListMax <= 0 {
		c.ProfileListMax = 5
	}
	if c.Timezone == nil {
		c.Timezone = time.UTC
	}
}

// Inbound is one user message addressed to a business.
type Inbound struct {
	From string // user address (phone or channel id)
	To   string // business inbound address
	Text string
}

// Reply is the assistant's answer for the turn. Empty means nothing
// should be sent back.
type Reply struct {
	Text  string
	Empty bool
}

// HistoryUpdate tells the prompt assembler whether the loaded messages
// replace the model's view of the dialogue (summary plus tail, already
// bounded) or are the dialogue in full and still need capping.
type HistoryUpdate struct {
	Replace  bool
	Messages []llm.Message
}

// Orchestrator runs one stateless turn: load context from storage, run
// the assistant with its tools, persist the reply and maintain the
// summary and profile tiers. It holds no per-conversation state between
// calls; everything is reconstructed from the store.
type Orchestrator struct {
	store      *storage.Store
	llm        llm.Client
	tools      *tools.Registry
	summarizer *memory.Summarizer
	extractor  *memory.Extractor
	cfg        Config
}

func New(store *storage.Store, client llm.Client, registry *tools.Registry, summarizer *memory.Summarizer, extractor *memory.Extractor, cfg Config) *Orchestrator {
	cfg.fill()
	return &Orchestrator{
		store:      store,
		llm:        client,
		tools:      registry,
		summarizer: summarizer,
		extractor:  extractor,
		cfg:        cfg,
	}
}

type turnContext struct {
	business     *domain.Business
	branches     []domain.Branch
	branch       *domain.Branch
	session      domain.Session
	conversation *domain.Conversation
	user         *domain.User
	history      HistoryUpdate
	duplicate    bool
}

// Turn processes one inbound message end to end and returns the reply.
func (o *Orchestrator) Turn(ctx context.Context, in Inbound) (Reply, error) {
	if strings.TrimSpace(in.Text) == "" {
		return Reply{Empty: true}, nil
	}

	tc, err := o.loadContext(ctx, in)
	if err != nil {
		return Reply{}, err
	}
	if tc == nil {
		return Reply{Empty: true}, nil
	}

	if !tc.duplicate {
		if _, err := o.store.Messages.Append(ctx, tc.conversation.ID, domain.RoleUser, in.Text); err != nil {
			return Reply{}, fmt.Errorf("failed to store inbound message: %w", err)
		}
	}

	scope := &tools.Scope{
		BusinessID: tc.business.ID,
		SessionID:  tc.session.ID,
		UserID:     tc.session.UserID,
		Phone:      in.From,
	}
	if tc.branch != nil {
		scope.BranchID = tc.branch.ID
	}

	text, err := o.assist(ctx, tc, scope, in.Text)
	if err != nil {
		return Reply{}, err
	}

	if text != "" {
		if _, err := o.store.Messages.Append(ctx, tc.conversation.ID, domain.RoleAssistant, text); err != nil {
			return Reply{}, fmt.Errorf("failed to store reply: %w", err)
		}
	}

	o.maintainMemory(ctx, tc, scope)

	if text == "" {
		return Reply{Empty: true}, nil
	}
	return Reply{Text: text}, nil
}

// loadContext resolves business, session and active conversation, then
// builds the prompt history. With a summary present the history replaces
// the transcript with summary plus tail; otherwise it is the full
// transcript, capped by MaxPromptMessages at prompt time.
func (o *Orchestrator) loadContext(ctx context.Context, in Inbound) (*turnContext, error) {
	// A message to an address no business owns is dropped silently; the
	// sender gets no reply and the turn is not an error.
	business, err := o.store.Businesses.ByInboundAddress(ctx, in.To)
	if errors.Is(err, storage.ErrNotFound) {
		log.Printf("⚠️ ignoring message for unregistered address %s", in.To)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve business for %s: %w", in.To, err)
	}

	session, err := o.store.Sessions.GetOrCreate(ctx, business.ID, in.From)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	if err := o.store.Sessions.Touch(ctx, session.ID); err != nil {
		log.Printf("⚠️ could not touch session %s: %v", session.ID, err)
	}

	conv, err := o.store.Conversations.Active(ctx, session.ID, o.cfg.ConversationTimeout)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to load conversation: %w", err)
		}
		created, cerr := o.store.Conversations.Create(ctx, session.ID)
		if cerr != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", cerr)
		}
		conv = &created
	}

	var branch *domain.Branch
	branches, err := o.store.Branches.ByBusiness(ctx, business.ID)
	if err != nil {
		log.Printf("⚠️ could not load branches for %s: %v", business.ID, err)
		branches = nil
	}
	if len(branches) > 0 {
		branch = &branches[0]
	}

	var user *domain.User
	if session.UserID != "" {
		if u, uerr := o.store.Users.Get(ctx, session.UserID); uerr == nil {
			user = u
		}
	}

	tc := &turnContext{
		business:     business,
		branches:     branches,
		branch:       branch,
		session:      session,
		conversation: conv,
		user:         user,
	}

	limit := 0
	if conv.Summary != "" {
		limit = o.cfg.WindowTail
	}
	stored, err := o.store.Messages.Recent(ctx, conv.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	// Delivery retries send the same text twice; a duplicate of the
	// last stored user message is recognized and not stored again.
	if n := len(stored); n > 0 && stored[n-1].IsUser() && stored[n-1].Content == in.Text {
		tc.duplicate = true
		stored = stored[:n-1]
	}

	history := make([]llm.Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	tc.history = HistoryUpdate{Replace: conv.Summary != "", Messages: history}
	return tc, nil
}

// assist runs the model with the tool surface until it produces a plain
// reply or the round budget runs out.
func (o *Orchestrator) assist(ctx context.Context, tc *turnContext, scope *tools.Scope, text string) (string, error) {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: o.systemPrompt(tc)}}
	if tc.history.Replace {
		// The summary (in the system prompt) plus this tail stand in for
		// the full transcript.
		msgs = append(msgs, tc.history.Messages...)
	} else {
		msgs = append(msgs, memory.Window(tc.history.Messages, o.cfg.MaxPromptMessages)...)
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: text})

	defs := o.tools.Definitions()
	var last llm.Response
	for round := 0; round < o.cfg.MaxToolRounds; round++ {
		resp, err := o.llm.GenerateWithTools(ctx, msgs, defs)
		if err != nil {
			return "", fmt.Errorf("llm request failed: %w", err)
		}
		last = resp
		if !resp.HasToolCalls() {
			return strings.TrimSpace(resp.Content), nil
		}

		msgs = append(msgs, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result := o.tools.Execute(ctx, scope, call.Function.Name, call.Function.Arguments)
			msgs = append(msgs, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
			})
		}
	}

	// Round budget exhausted mid-loop; ask for a plain answer with the
	// tool results gathered so far.
	log.Printf("⚠️ tool round budget exhausted for conversation %s", tc.conversation.ID)
	resp, err := o.llm.Generate(ctx, msgs)
	if err != nil {
		if last.Content != "" {
			return strings.TrimSpace(last.Content), nil
		}
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

func (o *Orchestrator) systemPrompt(tc *turnContext) string {
	var b strings.Builder
	botName := tc.business.BotName
	if botName == "" {
		botName = "Assistant"
	}
	fmt.Fprintf(&b, "You are %s, the scheduling assistant for %s.\n", botName, tc.business.Name)
	b.WriteString("You help customers discover services, check availability and book, cancel or reschedule appointments using the provided tools.\n")
	b.WriteString("Never invent prices, times or availability; always use the tools. Confirm the details before booking or cancelling.\n")
	if tc.business.GreetingMessage != "" {
		fmt.Fprintf(&b, "Greet new conversations with: %s\n", tc.business.GreetingMessage)
	}
	if len(tc.branches) == 1 {
		fmt.Fprintf(&b, "\nLocation: %s\n", branchLine(tc.branches[0]))
	} else if len(tc.branches) > 1 {
		b.WriteString("\nLocations:\n")
		for _, br := range tc.branches {
			fmt.Fprintf(&b, "- %s\n", branchLine(br))
		}
	}
	fmt.Fprintf(&b, "\nToday is %s.\n", time.Now().In(o.cfg.Timezone).Format("Monday, 2006-01-02"))

	fmt.Fprintf(&b, "\nThe customer writes from %s.\n", tc.session.UserPhone)
	if tc.user != nil {
		fmt.Fprintf(&b, "The customer is %s (ID %s). Do not ask them to identify again.\n",
			tc.user.FullName, tc.user.IdentificationNumber)
	}
	if tc.conversation.Summary != "" {
		fmt.Fprintf(&b, "\nEarlier in this conversation:\n%s\n", tc.conversation.Summary)
	}
	if len(tc.session.MemoryProfile) > 0 {
		if profile, err := memory.ParseProfile(tc.session.MemoryProfile); err == nil {
			if s := profile.FormatForPrompt(); s != "" {
				fmt.Fprintf(&b, "\nWhat you know about this customer from past visits:\n%s\n", s)
			}
		}
	}
	return b.String()
}

func branchLine(br domain.Branch) string {
	line := br.Name
	if br.Address != "" {
		line += ", " + br.Address
	}
	if br.City != "" {
		line += ", " + br.City
	}
	if br.Phone != "" {
		line += " (tel " + br.Phone + ")"
	}
	return line
}

// maintainMemory updates the summary and profile tiers after the reply
// is stored. Failures here are logged and swallowed; memory maintenance
// never breaks a turn that already answered the user.
func (o *Orchestrator) maintainMemory(ctx context.Context, tc *turnContext, scope *tools.Scope) {
	conv, err := o.store.Conversations.Get(ctx, tc.conversation.ID)
	if err != nil {
		log.Printf("⚠️ memory maintenance: could not reload conversation %s: %v", tc.conversation.ID, err)
		return
	}

	if o.summarizer != nil {
		messages, err := o.store.Messages.Recent(ctx, conv.ID, 0)
		if err != nil {
			log.Printf("⚠️ memory maintenance: could not load messages: %v", err)
		} else if summary, changed, serr := o.summarizer.Maintain(ctx, conv, messages); serr != nil {
			log.Printf("⚠️ summary update failed for conversation %s: %v", conv.ID, serr)
		} else if changed {
			if uerr := o.store.Conversations.UpdateSummary(ctx, conv.ID, summary); uerr != nil {
				log.Printf("⚠️ could not store summary for %s: %v", conv.ID, uerr)
			} else {
				conv.Summary = summary
			}
		}
	}

	profile, err := memory.ParseProfile(tc.session.MemoryProfile)
	if err != nil {
		log.Printf("⚠️ discarding malformed profile for session %s: %v", tc.session.ID, err)
		profile = memory.Profile{}
	}
	dirty := false

	for _, appt := range scope.Booked {
		profile.RecordAppointment(appt.ServiceNameSnapshot, appt.ResourceNameSnapshot,
			appt.Date, appt.StartTime, o.cfg.ProfileListMax)
		dirty = true
	}
	for i := 0; i < scope.Cancellations; i++ {
		profile.RecordCancellation()
		dirty = true
	}

	if o.extractor != nil && conv.Summary != "" &&
		memory.ShouldCheckpoint(conv.MessageCount, o.cfg.ProfileStart, o.cfg.ProfileEvery) {
		extracted, err := o.extractor.Extract(ctx, conv.Summary, profile)
		if err != nil {
			log.Printf("⚠️ profile extraction failed for session %s: %v", tc.session.ID, err)
		} else {
			profile.Merge(extracted, o.cfg.ProfileListMax)
			dirty = true
		}
	}

	if !dirty {
		return
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		log.Printf("⚠️ could not encode profile for session %s: %v", tc.session.ID, err)
		return
	}
	if err := o.store.Sessions.UpdateProfile(ctx, tc.session.ID, raw); err != nil {
		log.Printf("⚠️ could not store profile for session %s: %v", tc.session.ID, err)
	}
}
