// Package whatsapp sends outbound messages through the WhatsApp Cloud API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatcommerce/internal/domain"
)

const DefaultBaseURL = "https://graph.facebook.com/v23.0"

const (
	maxButtons        = 3
	maxButtonTitleLen = 20
	maxRowTitleLen    = 24
)

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

type List struct {
	Header     string
	Body       string
	ButtonText string
	Sections   []ListSection
}

// Sender is the outbound chat surface used by the conversation and order flows.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
	SendButtons(ctx context.Context, to, body string, buttons []Button) error
	SendList(ctx context.Context, to string, list List) error
	SendCatalog(ctx context.Context, to, body, thumbnailProductID string) error
}

// APIError is a non-2xx response from the Graph API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api status %d: %s", e.Status, e.Body)
}

// Client posts messages for one business phone number.
type Client struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	httpClient    *http.Client
}

func NewClient(baseURL, phoneNumberID, accessToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:       baseURL,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

type message struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textBody    `json:"text,omitempty"`
	Interactive      *interactive `json:"interactive,omitempty"`
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type interactive struct {
	Type   string      `json:"type"`
	Header *textHeader `json:"header,omitempty"`
	Body   textOnly    `json:"body"`
	Action interface{} `json:"action"`
}

type textHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type textOnly struct {
	Text string `json:"text"`
}

type replyButton struct {
	Type  string `json:"type"`
	Reply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply"`
}

type listAction struct {
	Button   string        `json:"button"`
	Sections []listSection `json:"sections"`
}

type listSection struct {
	Title string    `json:"title,omitempty"`
	Rows  []listRow `json:"rows"`
}

type listRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type catalogAction struct {
	Name       string            `json:"name"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

func (c *Client) SendText(ctx context.Context, to, body string) error {
	return c.send(ctx, message{
		Type: "text",
		To:   to,
		Text: &textBody{Body: body, PreviewURL: true},
	})
}

func (c *Client) SendButtons(ctx context.Context, to, body string, buttons []Button) error {
	if len(buttons) > maxButtons {
		buttons = buttons[:maxButtons]
	}
	action := struct {
		Buttons []replyButton `json:"buttons"`
	}{}
	for _, b := range buttons {
		var rb replyButton
		rb.Type = "reply"
		rb.Reply.ID = b.ID
		rb.Reply.Title = truncate(b.Title, maxButtonTitleLen)
		action.Buttons = append(action.Buttons, rb)
	}
	return c.send(ctx, message{
		Type:        "interactive",
		To:          to,
		Interactive: &interactive{Type: "button", Body: textOnly{Text: body}, Action: action},
	})
}

func (c *Client) SendList(ctx context.Context, to string, list List) error {
	action := listAction{Button: truncate(list.ButtonText, maxButtonTitleLen)}
	for _, s := range list.Sections {
		sec := listSection{Title: truncate(s.Title, maxRowTitleLen)}
		for _, r := range s.Rows {
			sec.Rows = append(sec.Rows, listRow{ID: r.ID, Title: truncate(r.Title, maxRowTitleLen), Description: r.Description})
		}
		action.Sections = append(action.Sections, sec)
	}
	in := &interactive{Type: "list", Body: textOnly{Text: list.Body}, Action: action}
	if list.Header != "" {
		in.Header = &textHeader{Type: "text", Text: list.Header}
	}
	return c.send(ctx, message{Type: "interactive", To: to, Interactive: in})
}

func (c *Client) SendCatalog(ctx context.Context, to, body, thumbnailProductID string) error {
	action := catalogAction{Name: "catalog_message"}
	if thumbnailProductID != "" {
		action.Parameters = map[string]string{"thumbnail_product_retailer_id": thumbnailProductID}
	}
	return c.send(ctx, message{
		Type:        "interactive",
		To:          to,
		Interactive: &interactive{Type: "catalog_message", Body: textOnly{Text: body}, Action: action},
	})
}

func (c *Client) send(ctx context.Context, msg message) error {
	msg.MessagingProduct = "whatsapp"
	msg.RecipientType = "individual"

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.UpstreamErr("send "+msg.Type+" message", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.UpstreamErr("send "+msg.Type+" message", &APIError{Status: resp.StatusCode, Body: string(data)})
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
