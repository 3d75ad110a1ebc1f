package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusPaid      OrderStatus = "Paid"
	OrderStatusReady     OrderStatus = "Ready"
	OrderStatusOnTheWay  OrderStatus = "On The Way"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:  {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:     {OrderStatusReady, OrderStatusOnTheWay, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusReady:    {OrderStatusOnTheWay, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusOnTheWay: {OrderStatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal statuses move the order to the archive.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// TakeawayAddress is the literal delivery address recorded for takeaway orders.
const TakeawayAddress = "Takeaway"

// Address is either a shared location or free text.
type Address struct {
	Location *Location `json:"location,omitempty"`
	Text     string    `json:"text,omitempty"`
}

type Order struct {
	ID                 string        `json:"order_id"`
	UserID             string        `json:"user_id"`
	Branch             string        `json:"branch"`
	Items              []CartLine    `json:"items"`
	OriginalTotal      int64         `json:"original_total"`
	DiscountPercentage float64       `json:"discount_percentage"`
	DiscountAmount     int64         `json:"discount_amount"`
	Total              int64         `json:"total"`
	Status             OrderStatus   `json:"status"`
	OrderDate          time.Time     `json:"order_date"`
	DeliveryType       DeliveryType  `json:"delivery_type"`
	DeliveryAddress    Address       `json:"delivery_address"`
	TextAddress        string        `json:"text_address,omitempty"`
	PaymentMethod      PaymentMethod `json:"payment_method"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// PendingOrder holds a cart snapshot while an online payment is outstanding.
type PendingOrder struct {
	ID              string        `json:"order_id"`
	UserID          string        `json:"user_id"`
	Cart            Cart          `json:"cart"`
	DeliveryType    DeliveryType  `json:"delivery_type"`
	DeliveryAddress string        `json:"delivery_address"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	CreatedAt       time.Time     `json:"created_at"`

	// DiscountPercentage is the discount in force when the pending order was
	// created. The payment link and the confirmed order both charge it.
	DiscountPercentage *float64 `json:"discount_percentage,omitempty"`
}

type CartReminder struct {
	UserID      string    `json:"user_id"`
	OrderID     string    `json:"order_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}
