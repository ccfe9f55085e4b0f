// Package whatsapp adapts the WhatsApp Cloud API as the conversation and
// notification channel. Delivery is best-effort from the core's point of
// view: a failed confirmation message never rolls back a payment.
package whatsapp

import "context"

type Button struct {
	ID    string
	Title string
}

type ListRow struct {
	ID          string
	Title       string
	Description string
}

type ListSection struct {
	Title string
	Rows  []ListRow
}

type Notifier interface {
	SendText(ctx context.Context, to, body string) error
	// SendImage accepts a base64 data URL; the PNG is uploaded to the
	// media endpoint and sent by media id.
	SendImage(ctx context.Context, to, imageDataURL, caption string) error
	SendButtons(ctx context.Context, to, body string, buttons []Button) error
	SendList(ctx context.Context, to, body, buttonText string, sections []ListSection) error
}
