package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"schedbot/internal/llm"
)

// Profile is the tier-3 memory: a cross-conversation view of the user
// kept on the session. Only explicitly stated facts belong here.
type Profile struct {
	FullName             string   `json:"full_name,omitempty"`
	IdentificationNumber string   `json:"identification_number,omitempty"`
	PhoneNumber          string   `json:"phone_number,omitempty"`
	TotalAppointments    int      `json:"total_appointments,omitempty"`
	CancelledAppointments int     `json:"cancelled_appointments,omitempty"`
	LastAppointmentDate  string   `json:"last_appointment_date,omitempty"`
	LastAppointmentService string `json:"last_appointment_service,omitempty"`
	PreferredServices    []string `json:"preferred_services,omitempty"`
	PreferredResources   []string `json:"preferred_resources,omitempty"`
	PreferredTimeSlots   []string `json:"preferred_time_slots,omitempty"`
	PreferredBranch      string   `json:"preferred_branch,omitempty"`
	Notes                []string `json:"notes,omitempty"`
	FirstInteraction     string   `json:"first_interaction,omitempty"`
	LastInteraction      string   `json:"last_interaction,omitempty"`
}

// ParseProfile decodes a stored profile blob; an empty blob yields a zero
// profile.
func ParseProfile(raw []byte) (Profile, error) {
	var p Profile
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("invalid profile blob: %w", err)
	}
	return p, nil
}

// Merge folds updates into the profile: list fields are unioned in order
// and capped to the most recent listMax entries; scalar fields are
// overwritten only by non-empty values.
func (p *Profile) Merge(updates Profile, listMax int) {
	setIf(&p.FullName, updates.FullName)
	setIf(&p.IdentificationNumber, updates.IdentificationNumber)
	setIf(&p.PhoneNumber, updates.PhoneNumber)
	setIf(&p.LastAppointmentDate, updates.LastAppointmentDate)
	setIf(&p.LastAppointmentService, updates.LastAppointmentService)
	setIf(&p.PreferredBranch, updates.PreferredBranch)
	p.PreferredServices = unionCapped(p.PreferredServices, updates.PreferredServices, listMax)
	p.PreferredResources = unionCapped(p.PreferredResources, updates.PreferredResources, listMax)
	p.PreferredTimeSlots = unionCapped(p.PreferredTimeSlots, updates.PreferredTimeSlots, listMax)
	p.Notes = unionCapped(p.Notes, updates.Notes, listMax)
	p.LastInteraction = time.Now().Format(time.RFC3339)
	if p.FirstInteraction == "" {
		p.FirstInteraction = p.LastInteraction
	}
}

// RecordAppointment updates the profile after a confirmed booking:
// counters, last-appointment fields and a time-of-day preference derived
// from the booked hour.
func (p *Profile) RecordAppointment(serviceName, resourceName, date, startTime string, listMax int) {
	p.TotalAppointments++
	p.LastAppointmentDate = date
	p.LastAppointmentService = serviceName
	slot := "afternoon"
	if min, err := clockMinutes(startTime); err == nil && min < 12*60 {
		slot = "morning"
	}
	p.Merge(Profile{
		PreferredServices:  []string{serviceName},
		PreferredResources: []string{resourceName},
		PreferredTimeSlots: []string{slot},
	}, listMax)
}

// RecordCancellation bumps the cancellation counter.
func (p *Profile) RecordCancellation() {
	p.CancelledAppointments++
	p.LastInteraction = time.Now().Format(time.RFC3339)
}

// FormatForPrompt renders the profile for the system instruction. Returns
// an empty string for a blank profile.
func (p Profile) FormatForPrompt() string {
	var parts []string
	if p.FullName != "" {
		parts = append(parts, "Known user: "+p.FullName)
		if p.IdentificationNumber != "" {
			parts = append(parts, "ID document: "+p.IdentificationNumber)
		}
	}
	if p.TotalAppointments > 0 {
		s := fmt.Sprintf("Has booked %d appointments", p.TotalAppointments)
		if p.CancelledAppointments > 0 {
			s += fmt.Sprintf(" (%d cancelled)", p.CancelledAppointments)
		}
		parts = append(parts, s)
	}
	if p.LastAppointmentService != "" {
		parts = append(parts, fmt.Sprintf("Last appointment: %s (%s)", p.LastAppointmentService, p.LastAppointmentDate))
	}
	if len(p.PreferredServices) > 0 {
		parts = append(parts, "Frequent services: "+strings.Join(p.PreferredServices, ", "))
	}
	if len(p.PreferredResources) > 0 {
		parts = append(parts, "Preferred staff: "+strings.Join(p.PreferredResources, ", "))
	}
	if len(p.PreferredTimeSlots) > 0 {
		parts = append(parts, "Preferred times: "+strings.Join(p.PreferredTimeSlots, ", "))
	}
	if len(p.Notes) > 0 {
		parts = append(parts, "Notes: "+strings.Join(p.Notes, "; "))
	}
	return strings.Join(parts, "\n")
}

const extractionPrompt = `Analyze the conversation summary below and extract profile facts about the user.
Only extract information that was explicitly stated.

Summary:
%s

Current profile:
%s

Reply with a JSON object containing only fields that carry new information:
- full_name
- identification_number
- preferred_services (array)
- preferred_resources (array, staff the user asked for)
- preferred_time_slots (array, e.g. "morning", "afternoon", or a specific time)
- notes (array, at most one new note)

Reply with ONLY the JSON object, nothing else.`

// Extractor derives profile updates from the tier-2 summary using an LLM.
// It runs at periodic checkpoints to bound LLM-call volume; failures are
// reported to the caller, which keeps the prior profile.
type Extractor struct {
	llm llm.Client
}

func NewExtractor(client llm.Client) *Extractor {
	return &Extractor{llm: client}
}

// Extract returns the update fragment parsed from the model output.
// Malformed JSON discards the whole fragment, there is no partial merge.
func (e *Extractor) Extract(ctx context.Context, summary string, current Profile) (Profile, error) {
	currentJSON, err := json.Marshal(current)
	if err != nil {
		return Profile{}, err
	}
	prompt := fmt.Sprintf(extractionPrompt, summary, string(currentJSON))
	resp, err := e.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return Profile{}, fmt.Errorf("profile extraction failed: %w", err)
	}
	var updates Profile
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &updates); err != nil {
		return Profile{}, fmt.Errorf("discarding malformed extraction output: %w", err)
	}
	return updates, nil
}

// ShouldCheckpoint reports whether the tier-3 profile is due for an
// update at this message count: every `every` messages once `start` is
// reached.
func ShouldCheckpoint(count, start, every int) bool {
	if count < start || every <= 0 {
		return false
	}
	return (count-start)%every == 0
}

func setIf(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func unionCapped(existing, incoming []string, max int) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, v := range existing {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range incoming {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

func clockMinutes(clock string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
