package models

import "time"

// ConversationState is the sole source of truth for a phone number's
// position in the purchase dialogue. It is keyed by phone rather than by
// user id because a User row may not exist yet when the chat starts.
type ConversationState struct {
	PhoneNumber     string    `gorm:"primaryKey" json:"phone_number"`
	CurrentStep     string    `gorm:"not null" json:"current_step"`
	StateData       string    `json:"state_data"`
	LastInteraction time.Time `json:"last_interaction"`
}

func (ConversationState) TableName() string {
	return "conversation_states"
}
