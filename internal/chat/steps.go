package chat

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Conversation steps. Each inbound message is dispatched on the step
// persisted for the sender's phone number, so the flow survives restarts.
const (
	StepWelcome          = "welcome"
	StepAwaitingName     = "awaiting_name"
	StepMainMenu         = "main_menu"
	StepViewingEvents    = "viewing_events"
	StepViewingEvent     = "viewing_event_details"
	StepSelectingTicket  = "selecting_ticket"
	StepAwaitingFormLink = "awaiting_form_submit"
	StepAwaitingFullName = "awaiting_full_name"
	StepAwaitingPhone    = "awaiting_phone"
	StepAwaitingEmail    = "awaiting_email"
	StepFormSubmitted    = "form_submitted"
)

// resetKeywords short-circuit dispatch from any step and restart the
// conversation. Button reply ids are included so the rendered "Back to
// Menu" button lands here too.
var resetKeywords = map[string]struct{}{
	"start":         {},
	"menu":          {},
	"restart":       {},
	"begin":         {},
	"home":          {},
	"back to menu":  {},
	"back to start": {},
	"back_to_menu":  {},
	"back_to_start": {},
}

func isResetKeyword(text string) bool {
	_, ok := resetKeywords[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

var deepLinkPattern = regexp.MustCompile(`(?i)book\s+event\s+([a-z0-9\-]+)`)

// deepLinkCode extracts the event code from a "book event EVT-..." message,
// the payload behind printed wa.me QR codes.
func deepLinkCode(text string) (string, bool) {
	match := deepLinkPattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return strings.ToUpper(match[1]), true
}

// SlotData is the JSON slot bag persisted alongside the step. Only the
// slots the current step needs are populated; a reset wipes the whole bag.
type SlotData struct {
	Name             string      `json:"name,omitempty"`
	EventIDs         []uuid.UUID `json:"event_ids,omitempty"`
	SelectedEventID  uuid.UUID   `json:"selected_event_id,omitempty"`
	TicketTypeIDs    []uuid.UUID `json:"ticket_type_ids,omitempty"`
	SelectedTicketID uuid.UUID   `json:"selected_ticket_id,omitempty"`
	SelectedPrice    string      `json:"selected_price,omitempty"`
	SessionToken     string      `json:"session_token,omitempty"`
	FormURL          string      `json:"form_url,omitempty"`
	FullName         string      `json:"full_name,omitempty"`
	PhoneNumber      string      `json:"phone_number,omitempty"`
	Email            string      `json:"email,omitempty"`
	OrderNumber      string      `json:"order_number,omitempty"`
}

func (s *SlotData) Encode() string {
	raw, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func DecodeSlots(raw string) *SlotData {
	slots := &SlotData{}
	if raw == "" {
		return slots
	}
	if err := json.Unmarshal([]byte(raw), slots); err != nil {
		return &SlotData{}
	}
	return slots
}

var digitsOnly = regexp.MustCompile(`\D`)

func validFullName(text string) bool {
	return len(strings.TrimSpace(text)) >= 2
}

func validPhone(text string) bool {
	return len(digitsOnly.ReplaceAllString(text, "")) >= 10
}

func validEmail(text string) bool {
	trimmed := strings.TrimSpace(text)
	at := strings.Index(trimmed, "@")
	return at > 0 && strings.Contains(trimmed[at:], ".")
}
