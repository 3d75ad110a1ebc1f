package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chatcommerce/internal/domain"
	"chatcommerce/internal/whatsapp"
)

// Button ids carried by interactive replies.
const (
	ButtonOrderNow          = "ORDER_NOW"
	ButtonBulkOrders        = "BULK_ORDERS"
	ButtonContinueShopping  = "CONTINUE_SHOPPING"
	ButtonProceedToCheckout = "PROCEED_TO_CHECKOUT"
	ButtonClearCart         = "CLEAR_CART"
	ButtonDelivery          = "DELIVERY"
	ButtonTakeaway          = "TAKEAWAY"
	ButtonPayNow            = "PAY_NOW"
	ButtonCashOnDelivery    = "CASH_ON_DELIVERY"
)

const (
	defaultGreeting = "👋 Welcome! Tap *Order Now* to browse our products."

	cartClearedText       = "🗑️ Your cart has been cleared."
	productNotFoundText   = "❌ Product not found. Please try again."
	invalidBranchText     = "❌ Invalid branch selection. Please try again."
	paymentProcessingText = "🔄 *GENERATING PAYMENT LINK*\n\nPlease wait a moment while we create your secure payment link..."
	genericFailureText    = "⚠️ Something went wrong on our side. Please try again in a moment."
)

func (r *Router) sendMainMenu(ctx context.Context, to string) {
	greeting := r.cfg.Greeting
	if greeting == "" {
		greeting = defaultGreeting
	}
	buttons := []whatsapp.Button{{ID: ButtonOrderNow, Title: "🛍️ Order Now"}}
	if r.cfg.BulkOrderContact != "" {
		buttons = append(buttons, whatsapp.Button{ID: ButtonBulkOrders, Title: "📦 Bulk Orders"})
	}
	r.report(to, "main menu", r.sender.SendButtons(ctx, to, greeting, buttons))
}

func (r *Router) sendCatalog(ctx context.Context, to string) {
	body := "🌟 *EXPLORE OUR PRODUCTS*\n\n" +
		"Browse our catalog and select items to add to your cart.\n\n" +
		"Tap the button below to view our catalog:"
	r.report(to, "catalog", r.sender.SendCatalog(ctx, to, body, r.cfg.CatalogThumbnailID))
}

func (r *Router) sendCartSummary(ctx context.Context, to string) {
	cart := r.carts.Get(ctx, to)
	if cart.Empty() {
		r.sendText(ctx, to, "🛒 *YOUR CART IS EMPTY*\n\nBrowse our catalog to add items to your cart.")
		return
	}
	var b strings.Builder
	b.WriteString("🛒 *YOUR CART*\n\n")
	for _, l := range cart.Lines {
		fmt.Fprintf(&b, "• %s x%d = %s\n", l.Name, l.Quantity, domain.FormatAmount(l.Subtotal()))
	}
	fmt.Fprintf(&b, "\n*TOTAL*: %s\n\nWhat would you like to do next?", domain.FormatAmount(cart.Total))
	r.report(to, "cart summary", r.sender.SendButtons(ctx, to, b.String(), []whatsapp.Button{
		{ID: ButtonContinueShopping, Title: "🛍️ Continue"},
		{ID: ButtonProceedToCheckout, Title: "✅ Checkout"},
		{ID: ButtonClearCart, Title: "🗑️ Clear Cart"},
	}))
}

func (r *Router) sendDeliveryOptions(ctx context.Context, to string) {
	r.report(to, "delivery options", r.sender.SendButtons(ctx, to,
		"📍 *DELIVERY OPTIONS*\n\nHow would you like to receive your order?",
		[]whatsapp.Button{
			{ID: ButtonDelivery, Title: "🚚 Home Delivery"},
			{ID: ButtonTakeaway, Title: "🏪 Store Pickup"},
		}))
}

func (r *Router) sendLocationRequest(ctx context.Context, to string) {
	r.sendText(ctx, to, fmt.Sprintf("📍 *SHARE YOUR LOCATION*\n\n"+
		"Please share your current location so we can check if we deliver to your area.\n\n"+
		"We deliver within %gkm of our branches.", r.cfg.DeliveryRadiusKm))
}

func (r *Router) sendBranchSelection(ctx context.Context, to string) {
	branches := r.directory.Branches()
	rows := make([]whatsapp.ListRow, 0, len(branches))
	for _, b := range branches {
		rows = append(rows, whatsapp.ListRow{ID: b.Name, Title: b.Name})
	}
	r.report(to, "branch selection", r.sender.SendList(ctx, to, whatsapp.List{
		Header:     "🏪 SELECT A BRANCH",
		Body:       "Please select a branch for pickup:",
		ButtonText: "Select Branch",
		Sections:   []whatsapp.ListSection{{Title: "Branches", Rows: rows}},
	}))
}

func (r *Router) sendPaymentOptions(ctx context.Context, to string) {
	r.report(to, "payment options", r.sender.SendButtons(ctx, to,
		"💳 *PAYMENT OPTIONS*\n\nHow would you like to pay for your order?",
		[]whatsapp.Button{
			{ID: ButtonPayNow, Title: "💳 Pay Now"},
			{ID: ButtonCashOnDelivery, Title: "💵 Cash on Delivery"},
		}))
}

func (r *Router) sendAddressRequest(ctx context.Context, to string) {
	r.sendText(ctx, to, "📍 *DELIVERY ADDRESS*\n\n"+
		"Please enter your full delivery address:\n\n"+
		"Example:\nHouse No. 123, Street Name\nArea, Landmark\nCity, PIN Code")
}

func (r *Router) sendBulkOrderInfo(ctx context.Context, to string) {
	r.sendText(ctx, to, "📞 *BULK ORDER INFORMATION*\n\n"+
		"For bulk orders, please contact us directly:\n\n"+
		r.cfg.BulkOrderContact+"\n\n"+
		"Our sales team will assist you with special pricing and delivery options.")
}

func (r *Router) sendText(ctx context.Context, to, body string) {
	r.report(to, "text", r.sender.SendText(ctx, to, body))
}

// prompt re-issues the prompt that belongs to step.
func (r *Router) prompt(ctx context.Context, to string, step domain.Step) {
	switch step {
	case domain.StepViewingCatalog:
		r.sendCatalog(ctx, to)
	case domain.StepViewingCart:
		r.sendCartSummary(ctx, to)
	case domain.StepSelectingDeliveryType:
		r.sendDeliveryOptions(ctx, to)
	case domain.StepWaitingForLocation:
		r.sendLocationRequest(ctx, to)
	case domain.StepSelectingBranch:
		r.sendBranchSelection(ctx, to)
	case domain.StepSelectingPaymentMethod:
		r.sendPaymentOptions(ctx, to)
	case domain.StepWaitingForAddress:
		r.sendAddressRequest(ctx, to)
	default:
		r.sendMainMenu(ctx, to)
	}
}

func (r *Router) report(to, what string, err error) {
	if err != nil {
		r.logger.Printf("send %s to %s: %v", what, to, err)
	}
}

// friendlyError turns an error into customer-facing text. Raw errors never
// reach the customer.
func (r *Router) friendlyError(err error) string {
	var oor *domain.OutOfRadiusError
	switch {
	case errors.As(err, &oor):
		return fmt.Sprintf("❌ Sorry, we don't deliver to your location.\n"+
			"The nearest branch is %.2fkm away, but our delivery radius is only %gkm.", oor.DistanceKm, oor.RadiusKm)
	case errors.Is(err, domain.ErrEmptyCart):
		return "🛒 Your cart is empty. Browse our catalog to add items first."
	case errors.Is(err, domain.ErrLocationRequired):
		return "📍 Please share your location so we can check delivery to your area."
	case errors.Is(err, domain.ErrBranchRequired):
		return "🏪 Please select a branch for pickup first."
	case errors.Is(err, domain.ErrUnknownProduct):
		return productNotFoundText
	case errors.Is(err, domain.ErrInvalidCoordinate):
		return "📍 That location doesn't look right. Please share it again."
	case errors.Is(err, domain.ErrNoBranches):
		return "😔 No branches are available right now. Please try again later."
	case errors.Is(err, domain.ErrPendingOrderNotFound):
		return "⌛ Your payment session has expired. Please place your order again."
	}
	switch domain.KindOf(err) {
	case domain.KindUpstream:
		return "⚠️ We couldn't reach our payment or messaging partner. Please try again in a moment."
	default:
		return genericFailureText
	}
}
