package domain

import "testing"

func TestCartAddLineMergesByProduct(t *testing.T) {
	var c Cart
	p1 := Product{ID: "P1", Name: "Palm Jaggery", Price: 10000}
	p2 := Product{ID: "P2", Name: "Jaggery Powder", Price: 2550}

	c.AddLine(p1, 2)
	c.AddLine(p2, 1)
	c.AddLine(p1, 3)

	if len(c.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(c.Lines))
	}
	if c.Lines[0].Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %d", c.Lines[0].Quantity)
	}
	if c.Total != 5*10000+2550 {
		t.Fatalf("unexpected total %d", c.Total)
	}
}

func TestCartNormalize(t *testing.T) {
	c := Cart{
		Lines: []CartLine{
			{ProductID: "P1", Quantity: 1, UnitPrice: 100},
			{ProductID: "", Quantity: 1, UnitPrice: 100},
			{ProductID: "P2", Quantity: 0, UnitPrice: 100},
			{ProductID: "P1", Quantity: 2, UnitPrice: 100},
		},
		Total:         12345,
		DeliveryType:  "Drone",
		PaymentMethod: PaymentMethodPayNow,
	}
	c.Normalize()

	if len(c.Lines) != 1 || c.Lines[0].Quantity != 3 {
		t.Fatalf("unexpected lines after normalize: %+v", c.Lines)
	}
	if c.Total != 300 {
		t.Fatalf("expected total 300, got %d", c.Total)
	}
	if c.DeliveryType != "" {
		t.Fatalf("expected unknown delivery type cleared, got %q", c.DeliveryType)
	}
	if c.PaymentMethod != PaymentMethodPayNow {
		t.Fatalf("expected payment method kept, got %q", c.PaymentMethod)
	}
}
