package order

import (
	"fmt"
	"strings"

	"chatcommerce/internal/domain"
)

// InvalidCommandReply is sent to staff when a status command cannot be parsed.
const InvalidCommandReply = "Invalid command format. Use: [status] [order_id]\n\nExample: 'ready ORD20250808E8BF12AB34CD'"

func formatItems(b *strings.Builder, items []domain.CartLine) {
	for _, l := range items {
		fmt.Fprintf(b, "• %s x%d = %s\n", l.Name, l.Quantity, domain.FormatAmount(l.Subtotal()))
	}
}

func formatTotals(b *strings.Builder, o *domain.Order) {
	if o.DiscountAmount > 0 {
		fmt.Fprintf(b, "Subtotal: %s\n", domain.FormatAmount(o.OriginalTotal))
		fmt.Fprintf(b, "Discount (%g%%): -%s\n", o.DiscountPercentage, domain.FormatAmount(o.DiscountAmount))
	}
	fmt.Fprintf(b, "*Total: %s*\n", domain.FormatAmount(o.Total))
}

func mapsLink(loc *domain.Location) string {
	return fmt.Sprintf("https://maps.google.com/?q=%.6f,%.6f", loc.Latitude, loc.Longitude)
}

func branchAlert(o *domain.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛎️ *New Order #%s*\n\n", o.ID)
	fmt.Fprintf(&b, "Customer: +%s\n", o.UserID)
	fmt.Fprintf(&b, "Type: %s\nPayment: %s (%s)\n\n", o.DeliveryType, o.PaymentMethod, o.Status)
	formatItems(&b, o.Items)
	b.WriteString("\n")
	formatTotals(&b, o)
	if o.DeliveryType == domain.DeliveryTypeDelivery {
		if o.TextAddress != "" {
			fmt.Fprintf(&b, "\nAddress: %s", o.TextAddress)
		}
		if o.DeliveryAddress.Location != nil {
			fmt.Fprintf(&b, "\nLocation: %s", mapsLink(o.DeliveryAddress.Location))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nReply 'ready %s' when the order is ready.", o.ID)
	return b.String()
}

func customerConfirmation(o *domain.Order, contacts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Your order #%s has been placed!\n\n", o.ID)
	formatItems(&b, o.Items)
	b.WriteString("\n")
	formatTotals(&b, o)
	fmt.Fprintf(&b, "\nBranch: %s\n", o.Branch)
	if o.DeliveryType == domain.DeliveryTypeTakeaway {
		b.WriteString("Pickup: Takeaway\n")
	} else {
		b.WriteString("We will deliver to your shared location.\n")
	}
	fmt.Fprintf(&b, "Payment: %s\n", o.PaymentMethod)
	if len(contacts) > 0 {
		fmt.Fprintf(&b, "\nFor any queries contact the branch at +%s.", strings.Join(contacts, ", +"))
	}
	return b.String()
}

func statusNotification(o *domain.Order) string {
	switch o.Status {
	case domain.OrderStatusReady:
		if o.DeliveryType == domain.DeliveryTypeTakeaway {
			return fmt.Sprintf("🎉 Your order #%s is *Ready* for pickup at %s.", o.ID, o.Branch)
		}
		return fmt.Sprintf("🎉 Your order #%s is *Ready* and will be dispatched shortly.", o.ID)
	case domain.OrderStatusOnTheWay:
		return fmt.Sprintf("🚚 Your order #%s is *On The Way*.", o.ID)
	case domain.OrderStatusDelivered:
		return fmt.Sprintf("📦 Your order #%s has been *Delivered*. Thank you for shopping with us!", o.ID)
	case domain.OrderStatusCancelled:
		return fmt.Sprintf("❌ Your order #%s has been *Cancelled*. Please contact us for help.", o.ID)
	default:
		return fmt.Sprintf("Your order #%s status is now *%s*.", o.ID, o.Status)
	}
}

// StatusUpdatedReply is the staff-facing acknowledgement of a status change.
func StatusUpdatedReply(o *domain.Order) string {
	return fmt.Sprintf("✅ Order #%s status updated to *%s*.", o.ID, o.Status)
}

func paymentLinkMessage(orderID string, amount int64, url string) string {
	return fmt.Sprintf("💳 Please complete the payment of %s for order #%s using this link:\n%s\n\nThe link is valid for 1 hour.",
		domain.FormatAmount(amount), orderID, url)
}
