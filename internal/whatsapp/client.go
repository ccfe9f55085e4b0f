package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sutenshah/ultra-events/internal/models"
)

const defaultGraphURL = "https://graph.facebook.com/v18.0"

// Client posts to the WhatsApp Cloud API messages endpoint.
type Client struct {
	Token         string
	PhoneNumberID string
	BaseURL       string
	HTTPClient    *http.Client
}

func NewClient(token, phoneNumberID string) *Client {
	return &Client{
		Token:         token,
		PhoneNumberID: phoneNumberID,
		BaseURL:       defaultGraphURL,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// recipient formats the stored digit string into the +-prefixed form the
// API requires.
func recipient(to string) string {
	digits := models.NormalizePhone(to)
	return "+" + digits
}

func (c *Client) SendText(ctx context.Context, to, body string) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                recipient(to),
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	return c.postJSON(ctx, "/messages", payload)
}

func (c *Client) SendImage(ctx context.Context, to, imageDataURL, caption string) error {
	mediaID, err := c.uploadPNG(ctx, imageDataURL)
	if err != nil {
		return fmt.Errorf("uploading image: %w", err)
	}
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                recipient(to),
		"type":              "image",
		"image":             map[string]string{"id": mediaID, "caption": caption},
	}
	return c.postJSON(ctx, "/messages", payload)
}

func (c *Client) SendButtons(ctx context.Context, to, body string, buttons []Button) error {
	// Button messages carry at most 3 reply buttons.
	if len(buttons) > 3 {
		buttons = buttons[:3]
	}
	buttonArray := make([]map[string]interface{}, 0, len(buttons))
	for _, btn := range buttons {
		buttonArray = append(buttonArray, map[string]interface{}{
			"type":  "reply",
			"reply": map[string]string{"id": btn.ID, "title": btn.Title},
		})
	}
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                recipient(to),
		"type":              "interactive",
		"interactive": map[string]interface{}{
			"type":   "button",
			"body":   map[string]string{"text": body},
			"action": map[string]interface{}{"buttons": buttonArray},
		},
	}
	if err := c.postJSON(ctx, "/messages", payload); err != nil {
		// Fall back to a plain text rendering of the choices.
		var lines []string
		for _, btn := range buttons {
			lines = append(lines, "• "+btn.Title)
		}
		return c.SendText(ctx, to, body+"\n\n"+strings.Join(lines, "\n"))
	}
	return nil
}

func (c *Client) SendList(ctx context.Context, to, body, buttonText string, sections []ListSection) error {
	sectionArray := make([]map[string]interface{}, 0, len(sections))
	for _, section := range sections {
		rows := make([]map[string]string, 0, len(section.Rows))
		for _, row := range section.Rows {
			rows = append(rows, map[string]string{
				"id":          row.ID,
				"title":       row.Title,
				"description": row.Description,
			})
		}
		sectionArray = append(sectionArray, map[string]interface{}{
			"title": section.Title,
			"rows":  rows,
		})
	}
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                recipient(to),
		"type":              "interactive",
		"interactive": map[string]interface{}{
			"type":   "list",
			"body":   map[string]string{"text": body},
			"action": map[string]interface{}{"button": buttonText, "sections": sectionArray},
		},
	}
	return c.postJSON(ctx, "/messages", payload)
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%s%s", c.BaseURL, c.PhoneNumberID, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp api returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// uploadPNG pushes the decoded data URL to the media endpoint and returns
// the media id used in the follow-up image message.
func (c *Client) uploadPNG(ctx context.Context, imageDataURL string) (string, error) {
	b64 := imageDataURL
	if idx := strings.Index(b64, ","); idx >= 0 {
		b64 = b64[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("decoding image data url: %w", err)
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "qrcode.png")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(raw); err != nil {
		return "", err
	}
	if err := form.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", err
	}
	if err := form.WriteField("type", "image"); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/media", c.BaseURL, c.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("media upload returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}
