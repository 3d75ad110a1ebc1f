package domain

import "time"

type DeliveryType string

const (
	DeliveryTypeDelivery DeliveryType = "Delivery"
	DeliveryTypeTakeaway DeliveryType = "Takeaway"
)

func (d DeliveryType) Valid() bool {
	return d == DeliveryTypeDelivery || d == DeliveryTypeTakeaway
}

type PaymentMethod string

const (
	PaymentMethodPayNow         PaymentMethod = "Pay Now"
	PaymentMethodCashOnDelivery PaymentMethod = "Cash on Delivery"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentMethodPayNow || p == PaymentMethodCashOnDelivery
}

type Cart struct {
	Lines           []CartLine    `json:"items"`
	Total           int64         `json:"total"`
	Branch          string        `json:"branch,omitempty"`
	DeliveryType    DeliveryType  `json:"delivery_type,omitempty"`
	PaymentMethod   PaymentMethod `json:"payment_method,omitempty"`
	Location        *Location     `json:"location,omitempty"`
	DeliveryAddress string        `json:"delivery_address,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type CartLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

func (l CartLine) Subtotal() int64 { return int64(l.Quantity) * l.UnitPrice }

func (c *Cart) Empty() bool { return len(c.Lines) == 0 }

// AddLine merges quantity into the line for the product, or appends a new line.
func (c *Cart) AddLine(p Product, quantity int) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == p.ID {
			c.Lines[i].Quantity += quantity
			c.Recalculate()
			return
		}
	}
	c.Lines = append(c.Lines, CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  quantity,
		UnitPrice: p.Price,
	})
	c.Recalculate()
}

// Recalculate recomputes Total from the lines.
func (c *Cart) Recalculate() {
	var total int64
	for _, l := range c.Lines {
		total += l.Subtotal()
	}
	c.Total = total
}

// Normalize repairs a cart decoded from storage: lines with non-positive
// quantity or no product id are dropped, duplicate product lines are merged,
// unknown enum values are cleared and the total is recomputed.
func (c *Cart) Normalize() {
	lines := make([]CartLine, 0, len(c.Lines))
	index := make(map[string]int, len(c.Lines))
	for _, l := range c.Lines {
		if l.ProductID == "" || l.Quantity <= 0 || l.UnitPrice < 0 {
			continue
		}
		if i, ok := index[l.ProductID]; ok {
			lines[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(lines)
		lines = append(lines, l)
	}
	c.Lines = lines
	if c.DeliveryType != "" && !c.DeliveryType.Valid() {
		c.DeliveryType = ""
	}
	if c.PaymentMethod != "" && !c.PaymentMethod.Valid() {
		c.PaymentMethod = ""
	}
	c.Recalculate()
}
