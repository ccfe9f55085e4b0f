// Package chat drives the WhatsApp booking conversation. State is a row
// per phone number (step plus a JSON slot bag), so any inbound message is
// handled statelessly by loading the row, dispatching on the step, and
// writing back the next step.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sutenshah/ultra-events/internal/helpers"
	"github.com/sutenshah/ultra-events/internal/models"
	"github.com/sutenshah/ultra-events/internal/ordering"
	"github.com/sutenshah/ultra-events/internal/shortlink"
	"github.com/sutenshah/ultra-events/internal/whatsapp"
)

type Machine struct {
	db       *gorm.DB
	notifier whatsapp.Notifier
	orders   *ordering.Manager
	links    *shortlink.Service
	baseURL  string
}

func NewMachine(db *gorm.DB, notifier whatsapp.Notifier, orders *ordering.Manager, links *shortlink.Service, baseURL string) *Machine {
	return &Machine{
		db:       db,
		notifier: notifier,
		orders:   orders,
		links:    links,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// HandleMessage processes one inbound message. Reset keywords and booking
// deep links are intercepted before step dispatch so they work from any
// point in the flow.
func (m *Machine) HandleMessage(ctx context.Context, phone, text string) error {
	phone = models.NormalizePhone(phone)
	text = strings.TrimSpace(text)

	if isResetKeyword(text) {
		if err := m.clearState(ctx, phone); err != nil {
			return err
		}
		return m.sendMainMenu(ctx, phone, "")
	}

	if code, ok := deepLinkCode(text); ok {
		return m.startDeepLink(ctx, phone, code)
	}

	state, slots, err := m.loadState(ctx, phone)
	if err != nil {
		return err
	}

	switch state.CurrentStep {
	case StepWelcome:
		return m.handleWelcome(ctx, phone)
	case StepAwaitingName:
		return m.handleName(ctx, phone, text, slots)
	case StepMainMenu:
		return m.handleMainMenu(ctx, phone, text, slots)
	case StepViewingEvents:
		return m.handleEventSelection(ctx, phone, text, slots)
	case StepViewingEvent:
		return m.handleEventDetails(ctx, phone, text, slots)
	case StepSelectingTicket:
		return m.handleTicketSelection(ctx, phone, text, slots)
	case StepAwaitingFormLink:
		return m.handleAwaitingForm(ctx, phone, text, slots)
	case StepAwaitingFullName:
		return m.handleFullName(ctx, phone, text, slots)
	case StepAwaitingPhone:
		return m.handlePhone(ctx, phone, text, slots)
	case StepAwaitingEmail:
		return m.handleEmail(ctx, phone, text, slots)
	case StepFormSubmitted:
		return m.handleAfterOrder(ctx, phone, text, slots)
	default:
		log.Printf("chat: unknown step %q for %s, resetting", state.CurrentStep, phone)
		if err := m.clearState(ctx, phone); err != nil {
			return err
		}
		return m.sendMainMenu(ctx, phone, "")
	}
}

func (m *Machine) handleWelcome(ctx context.Context, phone string) error {
	var user models.User
	err := m.db.WithContext(ctx).Where("phone_number = ?", phone).First(&user).Error
	if err == nil && user.FullName != "" {
		if err := m.saveState(ctx, phone, StepMainMenu, &SlotData{Name: user.FullName}); err != nil {
			return err
		}
		return m.sendMainMenu(ctx, phone, user.FullName)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := m.saveState(ctx, phone, StepAwaitingName, &SlotData{}); err != nil {
		return err
	}
	return m.notifier.SendText(ctx, phone,
		"Welcome to Ultra Events! 🎉\n\nWhat's your name?")
}

func (m *Machine) handleName(ctx context.Context, phone, text string, slots *SlotData) error {
	if !validFullName(text) {
		return m.notifier.SendText(ctx, phone, "Please tell me your name so I can set things up.")
	}
	slots.Name = text
	if err := m.upsertUser(ctx, phone, text, ""); err != nil {
		return err
	}
	if err := m.saveState(ctx, phone, StepMainMenu, slots); err != nil {
		return err
	}
	return m.sendMainMenu(ctx, phone, text)
}

func (m *Machine) handleMainMenu(ctx context.Context, phone, text string, slots *SlotData) error {
	choice := strings.ToLower(text)
	switch {
	case choice == "view_events" || strings.Contains(choice, "event"):
		return m.showEvents(ctx, phone, slots)
	case choice == "my_tickets" || strings.Contains(choice, "ticket"):
		return m.showMyTickets(ctx, phone)
	case choice == "help":
		return m.notifier.SendText(ctx, phone,
			"I can help you discover events and book tickets.\n\nReply *menu* anytime to start over.")
	default:
		return m.sendMainMenu(ctx, phone, slots.Name)
	}
}

func (m *Machine) showEvents(ctx context.Context, phone string, slots *SlotData) error {
	var events []models.Event
	err := m.db.WithContext(ctx).
		Where("is_active = ? AND date >= ?", true, time.Now().Truncate(24*time.Hour)).
		Order("date ASC").
		Limit(10).
		Find(&events).Error
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return m.notifier.SendText(ctx, phone,
			"No upcoming events right now. Check back soon!")
	}

	slots.EventIDs = slots.EventIDs[:0]
	rows := make([]whatsapp.ListRow, 0, len(events))
	for i, event := range events {
		slots.EventIDs = append(slots.EventIDs, event.ID)
		rows = append(rows, whatsapp.ListRow{
			ID:          fmt.Sprintf("event_%d", i+1),
			Title:       truncateTitle(event.Name),
			Description: fmt.Sprintf("%s · %s", event.Date.Format("02 Jan 2006"), event.Venue),
		})
	}
	if err := m.saveState(ctx, phone, StepViewingEvents, slots); err != nil {
		return err
	}
	return m.notifier.SendList(ctx, phone,
		"Here's what's coming up 🎟️", "View Events",
		[]whatsapp.ListSection{{Title: "Upcoming Events", Rows: rows}})
}

func (m *Machine) handleEventSelection(ctx context.Context, phone, text string, slots *SlotData) error {
	index, ok := listIndex(text, "event_", len(slots.EventIDs))
	if !ok {
		return m.notifier.SendText(ctx, phone,
			"Please pick an event from the list, or reply *menu* to start over.")
	}
	slots.SelectedEventID = slots.EventIDs[index]
	return m.showEventDetails(ctx, phone, slots)
}

func (m *Machine) showEventDetails(ctx context.Context, phone string, slots *SlotData) error {
	var event models.Event
	err := m.db.WithContext(ctx).Preload("TicketTypes").
		First(&event, "id = ? AND is_active = ?", slots.SelectedEventID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return m.notifier.SendText(ctx, phone,
			"That event is no longer available. Reply *menu* to see what's on.")
	}
	if err != nil {
		return err
	}

	var body strings.Builder
	fmt.Fprintf(&body, "*%s*\n\n", event.Name)
	fmt.Fprintf(&body, "📅 %s", event.Date.Format("Monday, 02 Jan 2006"))
	if event.EventTime != "" {
		fmt.Fprintf(&body, " at %s", event.EventTime)
	}
	fmt.Fprintf(&body, "\n📍 %s\n", event.Venue)
	if event.Description != "" {
		fmt.Fprintf(&body, "\n%s\n", event.Description)
	}

	if err := m.saveState(ctx, phone, StepViewingEvent, slots); err != nil {
		return err
	}
	return m.notifier.SendButtons(ctx, phone, body.String(), []whatsapp.Button{
		{ID: "book_now", Title: "Book Now"},
		{ID: "back_to_menu", Title: "Back to Menu"},
	})
}

func (m *Machine) handleEventDetails(ctx context.Context, phone, text string, slots *SlotData) error {
	if strings.ToLower(text) != "book_now" && !strings.Contains(strings.ToLower(text), "book") {
		return m.notifier.SendText(ctx, phone,
			"Tap *Book Now* to continue, or reply *menu* to start over.")
	}
	return m.showTicketTypes(ctx, phone, slots)
}

func (m *Machine) showTicketTypes(ctx context.Context, phone string, slots *SlotData) error {
	var ticketTypes []models.TicketType
	err := m.db.WithContext(ctx).
		Where("event_id = ? AND available_quantity > 0", slots.SelectedEventID).
		Order("price ASC").
		Find(&ticketTypes).Error
	if err != nil {
		return err
	}
	if len(ticketTypes) == 0 {
		return m.notifier.SendText(ctx, phone,
			"Sorry, this event is sold out. Reply *menu* to browse other events.")
	}

	slots.TicketTypeIDs = slots.TicketTypeIDs[:0]
	rows := make([]whatsapp.ListRow, 0, len(ticketTypes))
	for i, tt := range ticketTypes {
		slots.TicketTypeIDs = append(slots.TicketTypeIDs, tt.ID)
		rows = append(rows, whatsapp.ListRow{
			ID:          fmt.Sprintf("ticket_%d", i+1),
			Title:       truncateTitle(tt.Name),
			Description: fmt.Sprintf("₹%s · %d left", tt.Price.StringFixed(2), tt.AvailableQuantity),
		})
	}
	if err := m.saveState(ctx, phone, StepSelectingTicket, slots); err != nil {
		return err
	}
	return m.notifier.SendList(ctx, phone,
		"Choose your ticket:", "Ticket Types",
		[]whatsapp.ListSection{{Title: "Available Tickets", Rows: rows}})
}

// handleTicketSelection mints the session token that keys idempotent order
// creation: the token rides on both the web form link and the in-chat
// flow, so a double submission yields one order.
func (m *Machine) handleTicketSelection(ctx context.Context, phone, text string, slots *SlotData) error {
	index, ok := listIndex(text, "ticket_", len(slots.TicketTypeIDs))
	if !ok {
		return m.notifier.SendText(ctx, phone,
			"Please pick a ticket from the list, or reply *menu* to start over.")
	}
	slots.SelectedTicketID = slots.TicketTypeIDs[index]

	var tt models.TicketType
	if err := m.db.WithContext(ctx).First(&tt, "id = ?", slots.SelectedTicketID).Error; err != nil {
		return err
	}
	slots.SelectedPrice = tt.Price.StringFixed(2)

	token, err := helpers.GenerateShortID(16)
	if err != nil {
		return err
	}
	slots.SessionToken = token

	formURL := fmt.Sprintf("%s/ticket-form?phone=%s&token=%s",
		m.baseURL, url.QueryEscape(phone), url.QueryEscape(token))
	short, err := m.links.Shorten(ctx, formURL)
	if err != nil {
		log.Printf("chat: shorten form link for %s: %v", phone, err)
		short = formURL
	} else {
		short = fmt.Sprintf("%s/s/%s", m.baseURL, short)
	}
	slots.FormURL = short

	if err := m.saveState(ctx, phone, StepAwaitingFormLink, slots); err != nil {
		return err
	}

	body := fmt.Sprintf("Great choice! *%s* for ₹%s.\n\nFill in your details here:\n%s\n\nOr tap below to continue in chat.",
		tt.Name, slots.SelectedPrice, short)
	return m.notifier.SendButtons(ctx, phone, body, []whatsapp.Button{
		{ID: "fill_in_chat", Title: "Fill in Chat"},
		{ID: "back_to_menu", Title: "Back to Menu"},
	})
}

func (m *Machine) handleAwaitingForm(ctx context.Context, phone, text string, slots *SlotData) error {
	if strings.ToLower(text) == "fill_in_chat" || strings.Contains(strings.ToLower(text), "chat") {
		if err := m.saveState(ctx, phone, StepAwaitingFullName, slots); err != nil {
			return err
		}
		return m.notifier.SendText(ctx, phone, "What's your full name?")
	}
	return m.notifier.SendText(ctx, phone,
		fmt.Sprintf("Waiting for your details. Use the form:\n%s\n\nOr reply *chat* to fill them here.", slots.FormURL))
}

func (m *Machine) handleFullName(ctx context.Context, phone, text string, slots *SlotData) error {
	if !validFullName(text) {
		return m.notifier.SendText(ctx, phone, "That name looks too short. Please enter your full name.")
	}
	slots.FullName = text
	if err := m.saveState(ctx, phone, StepAwaitingPhone, slots); err != nil {
		return err
	}
	return m.notifier.SendText(ctx, phone, "Your phone number?")
}

func (m *Machine) handlePhone(ctx context.Context, phone, text string, slots *SlotData) error {
	if !validPhone(text) {
		return m.notifier.SendText(ctx, phone, "That doesn't look like a valid phone number. Please enter at least 10 digits.")
	}
	slots.PhoneNumber = models.NormalizePhone(text)
	if err := m.saveState(ctx, phone, StepAwaitingEmail, slots); err != nil {
		return err
	}
	return m.notifier.SendText(ctx, phone, "And your email address?")
}

func (m *Machine) handleEmail(ctx context.Context, phone, text string, slots *SlotData) error {
	if !validEmail(text) {
		return m.notifier.SendText(ctx, phone, "That doesn't look like a valid email. Please try again.")
	}
	slots.Email = strings.TrimSpace(text)

	order, err := m.placeOrder(ctx, phone, slots.FullName, slots.Email, slots)
	if err != nil {
		return m.reportOrderError(ctx, phone, err)
	}
	slots.OrderNumber = order.OrderNumber
	if err := m.saveState(ctx, phone, StepFormSubmitted, slots); err != nil {
		return err
	}
	return m.sendPayLink(ctx, phone, order)
}

func (m *Machine) handleAfterOrder(ctx context.Context, phone, text string, slots *SlotData) error {
	if slots.OrderNumber != "" {
		order, err := m.orders.GetByOrderNumber(ctx, slots.OrderNumber)
		if err == nil && order.Status == models.OrderStatusPending && order.PayURL != "" {
			return m.notifier.SendText(ctx, phone,
				fmt.Sprintf("Your order *%s* is awaiting payment:\n%s\n\nReply *menu* to start over.", order.OrderNumber, order.PayURL))
		}
	}
	return m.notifier.SendText(ctx, phone,
		"You're all set! Your ticket arrives here once payment is confirmed.\n\nReply *menu* for anything else.")
}

// HandleFormSubmission completes a booking started in chat and finished on
// the web form. The token must match the one minted for this phone's
// conversation; the underlying order creation is idempotent on it, so a
// re-posted form returns the same order.
func (m *Machine) HandleFormSubmission(ctx context.Context, phone, token, fullName, email string) (*models.Order, error) {
	phone = models.NormalizePhone(phone)
	_, slots, err := m.loadState(ctx, phone)
	if err != nil {
		return nil, err
	}
	if slots.SessionToken == "" || slots.SessionToken != token {
		return nil, ordering.ErrOrderNotFound
	}
	if !validFullName(fullName) || !validEmail(email) {
		return nil, fmt.Errorf("invalid form input")
	}

	order, err := m.placeOrder(ctx, phone, fullName, email, slots)
	if err != nil {
		return nil, err
	}
	slots.FullName = fullName
	slots.Email = email
	slots.OrderNumber = order.OrderNumber
	if err := m.saveState(ctx, phone, StepFormSubmitted, slots); err != nil {
		return nil, err
	}
	if err := m.sendPayLink(ctx, phone, order); err != nil {
		log.Printf("chat: send pay link to %s: %v", phone, err)
	}
	return order, nil
}

func (m *Machine) placeOrder(ctx context.Context, phone, fullName, email string, slots *SlotData) (*models.Order, error) {
	if err := m.upsertUser(ctx, phone, fullName, email); err != nil {
		return nil, err
	}
	var user models.User
	if err := m.db.WithContext(ctx).Where("phone_number = ?", phone).First(&user).Error; err != nil {
		return nil, err
	}
	return m.orders.Create(ctx, ordering.CreateParams{
		UserID:       user.ID,
		EventID:      slots.SelectedEventID,
		TicketTypeID: slots.SelectedTicketID,
		SessionToken: slots.SessionToken,
	})
}

func (m *Machine) sendPayLink(ctx context.Context, phone string, order *models.Order) error {
	if order.Status == models.OrderStatusCompleted {
		return m.notifier.SendText(ctx, phone,
			fmt.Sprintf("Order *%s* is already paid. Your ticket is on its way!", order.OrderNumber))
	}
	return m.notifier.SendText(ctx, phone,
		fmt.Sprintf("Almost there! Complete your payment of ₹%s:\n%s\n\nYour ticket arrives here the moment payment goes through. ✨",
			order.Amount.StringFixed(2), order.PayURL))
}

func (m *Machine) reportOrderError(ctx context.Context, phone string, err error) error {
	switch {
	case errors.Is(err, ordering.ErrInventoryExhausted):
		return m.notifier.SendText(ctx, phone,
			"Sorry, that ticket just sold out. Reply *menu* to browse other options.")
	case errors.Is(err, ordering.ErrGatewayUnavailable):
		return m.notifier.SendText(ctx, phone,
			"We couldn't reach the payment provider. Please try again in a minute.")
	default:
		log.Printf("chat: place order for %s: %v", phone, err)
		return m.notifier.SendText(ctx, phone,
			"Something went wrong creating your order. Reply *menu* to try again.")
	}
}

func (m *Machine) startDeepLink(ctx context.Context, phone, code string) error {
	var event models.Event
	err := m.db.WithContext(ctx).First(&event, "code = ? AND is_active = ?", code, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return m.notifier.SendText(ctx, phone,
			"We couldn't find that event. Reply *menu* to see what's on.")
	}
	if err != nil {
		return err
	}

	_, slots, err := m.loadState(ctx, phone)
	if err != nil {
		return err
	}
	slots.SelectedEventID = event.ID
	return m.showEventDetails(ctx, phone, slots)
}

func (m *Machine) showMyTickets(ctx context.Context, phone string) error {
	var user models.User
	err := m.db.WithContext(ctx).Where("phone_number = ?", phone).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return m.notifier.SendText(ctx, phone, "No tickets yet. Reply *menu* to browse events!")
	}
	if err != nil {
		return err
	}

	var orders []models.Order
	err = m.db.WithContext(ctx).Preload("Event").Preload("TicketType").
		Where("user_id = ? AND status = ?", user.ID, models.OrderStatusCompleted).
		Order("created_at DESC").
		Limit(5).
		Find(&orders).Error
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return m.notifier.SendText(ctx, phone, "No tickets yet. Reply *menu* to browse events!")
	}

	var body strings.Builder
	body.WriteString("Your tickets 🎟️\n")
	for _, order := range orders {
		fmt.Fprintf(&body, "\n*%s*", order.OrderNumber)
		if order.Event != nil {
			fmt.Fprintf(&body, " · %s (%s)", order.Event.Name, order.Event.Date.Format("02 Jan"))
		}
	}
	return m.notifier.SendText(ctx, phone, body.String())
}

func (m *Machine) sendMainMenu(ctx context.Context, phone, name string) error {
	greeting := "Hi"
	if name != "" {
		greeting = "Hi " + name
	} else {
		var user models.User
		if err := m.db.WithContext(ctx).Where("phone_number = ?", phone).First(&user).Error; err == nil && user.FullName != "" {
			greeting = "Hi " + user.FullName
			name = user.FullName
		}
	}
	if name == "" {
		return m.handleWelcome(ctx, phone)
	}
	if err := m.saveState(ctx, phone, StepMainMenu, &SlotData{Name: name}); err != nil {
		return err
	}
	return m.notifier.SendButtons(ctx, phone,
		greeting+"! What would you like to do?",
		[]whatsapp.Button{
			{ID: "view_events", Title: "View Events"},
			{ID: "my_tickets", Title: "My Tickets"},
			{ID: "help", Title: "Help"},
		})
}

func (m *Machine) loadState(ctx context.Context, phone string) (*models.ConversationState, *SlotData, error) {
	var state models.ConversationState
	err := m.db.WithContext(ctx).First(&state, "phone_number = ?", phone).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = models.ConversationState{PhoneNumber: phone, CurrentStep: StepWelcome}
		return &state, &SlotData{}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &state, DecodeSlots(state.StateData), nil
}

func (m *Machine) saveState(ctx context.Context, phone, step string, slots *SlotData) error {
	state := models.ConversationState{
		PhoneNumber:     phone,
		CurrentStep:     step,
		StateData:       slots.Encode(),
		LastInteraction: time.Now(),
	}
	return m.db.WithContext(ctx).Save(&state).Error
}

func (m *Machine) clearState(ctx context.Context, phone string) error {
	return m.db.WithContext(ctx).
		Delete(&models.ConversationState{}, "phone_number = ?", phone).Error
}

func (m *Machine) upsertUser(ctx context.Context, phone, fullName, email string) error {
	var user models.User
	err := m.db.WithContext(ctx).Where("phone_number = ?", phone).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{PhoneNumber: phone, FullName: fullName, Email: email}
		return m.db.WithContext(ctx).Create(&user).Error
	}
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if fullName != "" && fullName != user.FullName {
		updates["full_name"] = fullName
	}
	if email != "" && email != user.Email {
		updates["email"] = email
	}
	if len(updates) == 0 {
		return nil
	}
	return m.db.WithContext(ctx).Model(&user).Updates(updates).Error
}

// listIndex resolves a list reply to a slice index. Replies carry the row
// id ("ticket_2"); typed numbers are accepted for clients that render the
// list as plain text.
func listIndex(text, prefix string, size int) (int, bool) {
	raw := strings.ToLower(strings.TrimSpace(text))
	raw = strings.TrimPrefix(raw, prefix)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > size {
		return 0, false
	}
	return n - 1, true
}

func truncateTitle(s string) string {
	if len(s) <= 24 {
		return s
	}
	return s[:21] + "..."
}
