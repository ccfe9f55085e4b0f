package whatsapp

// Webhook payload shapes for the Cloud API inbound POST. Only messages are
// processed; status updates (delivered/read) are acknowledged and dropped.

type WebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []InboundMessage `json:"messages"`
				Statuses []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type InboundMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Button *struct {
		Text string `json:"text"`
	} `json:"button"`
	Interactive *struct {
		ButtonReply *struct {
			ID string `json:"id"`
		} `json:"button_reply"`
		ListReply *struct {
			ID string `json:"id"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

// Text flattens the message into the single string the conversation
// machine dispatches on. Interactive reply ids take precedence over body
// text, matching how button and list selections come back.
func (m *InboundMessage) MessageText() string {
	if m.Interactive != nil {
		if m.Interactive.ButtonReply != nil {
			return m.Interactive.ButtonReply.ID
		}
		if m.Interactive.ListReply != nil {
			return m.Interactive.ListReply.ID
		}
	}
	if m.Text != nil {
		return m.Text.Body
	}
	if m.Button != nil {
		return m.Button.Text
	}
	return ""
}

// ExtractMessages pulls the inbound messages out of a webhook payload.
func (p *WebhookPayload) ExtractMessages() []InboundMessage {
	var messages []InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			messages = append(messages, change.Value.Messages...)
		}
	}
	return messages
}
