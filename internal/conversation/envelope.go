package conversation

import (
	"strings"

	"chatcommerce/internal/domain"
)

// Envelope is the webhook payload posted by the chat platform.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	Messages []Message `json:"messages"`
}

type Message struct {
	From        string           `json:"from"`
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	Text        *TextContent     `json:"text,omitempty"`
	Interactive *Interactive     `json:"interactive,omitempty"`
	Order       *OrderContent    `json:"order,omitempty"`
	Location    *LocationContent `json:"location,omitempty"`
}

type TextContent struct {
	Body string `json:"body"`
}

type Interactive struct {
	Type           string          `json:"type"`
	ListReply      *Reply          `json:"list_reply,omitempty"`
	ButtonReply    *Reply          `json:"button_reply,omitempty"`
	CatalogMessage *CatalogMessage `json:"catalog_message,omitempty"`
}

type Reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type CatalogMessage struct {
	CatalogID         string `json:"catalog_id"`
	ProductRetailerID string `json:"product_retailer_id"`
}

type OrderContent struct {
	CatalogID    string      `json:"catalog_id"`
	ProductItems []OrderItem `json:"product_items"`
}

type OrderItem struct {
	ProductRetailerID string  `json:"product_retailer_id"`
	Quantity          int     `json:"quantity"`
	ItemPrice         float64 `json:"item_price"`
	Currency          string  `json:"currency"`
}

type LocationContent struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// EventType is the normalized shape of an inbound message.
type EventType string

const (
	EventText             EventType = "text"
	EventButton           EventType = "button_reply"
	EventList             EventType = "list_reply"
	EventCatalogSelection EventType = "catalog_message"
	EventOrder            EventType = "order"
	EventLocation         EventType = "location"
	EventUnsupported      EventType = "unsupported"
)

// Event is one normalized inbound message.
type Event struct {
	From      string
	Type      EventType
	Text      string
	ReplyID   string
	ProductID string
	Items     []OrderItem
	Location  *domain.Location
}

// Events extracts at most one message per change, in payload order.
func (e Envelope) Events() []Event {
	var out []Event
	for _, entry := range e.Entry {
		for _, change := range entry.Changes {
			if len(change.Value.Messages) == 0 {
				continue
			}
			if ev, ok := normalize(change.Value.Messages[0]); ok {
				out = append(out, ev)
			}
		}
	}
	return out
}

func normalize(m Message) (Event, bool) {
	from := strings.TrimPrefix(strings.TrimSpace(m.From), "+")
	if from == "" {
		return Event{}, false
	}
	ev := Event{From: from, Type: EventUnsupported}

	switch m.Type {
	case "text":
		if m.Text != nil {
			ev.Type = EventText
			ev.Text = strings.TrimSpace(m.Text.Body)
		}
	case "interactive":
		if m.Interactive == nil {
			break
		}
		switch {
		case m.Interactive.Type == "button_reply" && m.Interactive.ButtonReply != nil:
			ev.Type = EventButton
			ev.ReplyID = m.Interactive.ButtonReply.ID
		case m.Interactive.Type == "list_reply" && m.Interactive.ListReply != nil:
			ev.Type = EventList
			ev.ReplyID = m.Interactive.ListReply.ID
		case m.Interactive.Type == "catalog_message" && m.Interactive.CatalogMessage != nil:
			ev.Type = EventCatalogSelection
			ev.ProductID = m.Interactive.CatalogMessage.ProductRetailerID
		}
	case "order":
		if m.Order != nil {
			ev.Type = EventOrder
			ev.Items = m.Order.ProductItems
		}
	case "location":
		if m.Location != nil {
			ev.Type = EventLocation
			ev.Location = &domain.Location{Latitude: m.Location.Latitude, Longitude: m.Location.Longitude}
		}
	}
	return ev, true
}
