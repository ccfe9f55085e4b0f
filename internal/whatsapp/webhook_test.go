package whatsapp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMessages(t *testing.T) {
	raw := `{
	  "entry": [{
	    "changes": [{
	      "value": {
	        "messages": [
	          {"from": "919876543210", "type": "text", "text": {"body": "hello"}}
	        ]
	      }
	    }]
	  }]
	}`

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	messages := payload.ExtractMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "919876543210", messages[0].From)
	assert.Equal(t, "hello", messages[0].MessageText())
}

func TestExtractMessagesIgnoresStatusUpdates(t *testing.T) {
	raw := `{
	  "entry": [{
	    "changes": [{
	      "value": {
	        "statuses": [{"id": "wamid.x", "status": "delivered"}]
	      }
	    }]
	  }]
	}`

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	assert.Empty(t, payload.ExtractMessages())
}

func TestMessageTextPrecedence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "button reply id wins",
			raw:  `{"type":"interactive","interactive":{"button_reply":{"id":"book_now"}},"text":{"body":"ignored"}}`,
			want: "book_now",
		},
		{
			name: "list reply id",
			raw:  `{"type":"interactive","interactive":{"list_reply":{"id":"event_2"}}}`,
			want: "event_2",
		},
		{
			name: "plain text body",
			raw:  `{"type":"text","text":{"body":"menu"}}`,
			want: "menu",
		},
		{
			name: "template button text",
			raw:  `{"type":"button","button":{"text":"View Events"}}`,
			want: "View Events",
		},
		{
			name: "unsupported type",
			raw:  `{"type":"image"}`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg InboundMessage
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &msg))
			assert.Equal(t, tt.want, msg.MessageText())
		})
	}
}
