package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"

	"chatcommerce/internal/catalog"
	"chatcommerce/internal/domain"
	"chatcommerce/internal/kv"
	"chatcommerce/internal/payment"
	cartrepo "chatcommerce/internal/repository/cart"
	discountrepo "chatcommerce/internal/repository/discount"
	orderrepo "chatcommerce/internal/repository/order"
	reminderrepo "chatcommerce/internal/repository/reminder"
	staterepo "chatcommerce/internal/repository/state"
	cartsvc "chatcommerce/internal/service/cart"
	discountsvc "chatcommerce/internal/service/discount"
	ordersvc "chatcommerce/internal/service/order"
	"chatcommerce/internal/whatsapp"
)

type outbound struct {
	to      string
	kind    string
	body    string
	buttons []whatsapp.Button
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []outbound
}

func (s *recordingSender) add(m outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	return nil
}

func (s *recordingSender) SendText(_ context.Context, to, body string) error {
	return s.add(outbound{to: to, kind: "text", body: body})
}

func (s *recordingSender) SendButtons(_ context.Context, to, body string, buttons []whatsapp.Button) error {
	return s.add(outbound{to: to, kind: "buttons", body: body, buttons: buttons})
}

func (s *recordingSender) SendList(_ context.Context, to string, list whatsapp.List) error {
	return s.add(outbound{to: to, kind: "list", body: list.Body})
}

func (s *recordingSender) SendCatalog(_ context.Context, to, body, _ string) error {
	return s.add(outbound{to: to, kind: "catalog", body: body})
}

func (s *recordingSender) last(to string) outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].to == to {
			return s.msgs[i]
		}
	}
	return outbound{}
}

func (s *recordingSender) all(to string) []outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbound
	for _, m := range s.msgs {
		if m.to == to {
			out = append(out, m)
		}
	}
	return out
}

func (s *recordingSender) reset() {
	s.mu.Lock()
	s.msgs = nil
	s.mu.Unlock()
}

type stubGateway struct {
	err   error
	calls int
}

func (g *stubGateway) CreatePaymentLink(_ context.Context, req payment.LinkRequest) (*payment.Link, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Link{ID: "plink_1", URL: "https://rzp.io/i/" + req.Reference}, nil
}

const (
	customer   = "919111111111"
	branchDesk = "919000000001"
	admin      = "919999999999"
)

type env struct {
	router    *Router
	sender    *recordingSender
	gateway   *stubGateway
	states    staterepo.Repository
	carts     *cartsvc.Service
	orders    orderrepo.Repository
	discounts discountrepo.Repository
}

func newEnv(t *testing.T, staff []string) *env {
	t.Helper()
	store := kv.NewMemory()
	keys := kv.Keys{Brand: "test"}
	logger := log.New(&bytes.Buffer{}, "", 0)

	dir := catalog.New("Kanuka", 6, []domain.Branch{
		{Name: "Kondapur", Location: domain.Location{Latitude: 17.4699, Longitude: 78.3578}, Contacts: []string{branchDesk}},
		{Name: "Madhapur", Location: domain.Location{Latitude: 17.4483, Longitude: 78.3915}},
	}, []domain.Product{{ID: "P1", Name: "Palm Jaggery", Price: 10000}})

	e := &env{
		sender:    &recordingSender{},
		gateway:   &stubGateway{},
		states:    staterepo.NewStore(store, keys),
		orders:    orderrepo.NewStore(store, keys),
		discounts: discountrepo.NewStore(store, keys),
	}
	e.carts = cartsvc.New(cartrepo.NewStore(store, keys), dir, logger)
	discounts := discountsvc.New(e.discounts, logger)
	orders := ordersvc.New(ordersvc.Deps{
		Orders:    e.orders,
		Carts:     e.carts,
		States:    e.states,
		Discounts: discounts,
		Reminders: reminderrepo.NewStore(store, keys),
		Directory: dir,
		Messenger: e.sender,
		Payments:  e.gateway,
		Logger:    logger,
	}, ordersvc.Config{DeliveryRadiusKm: 6, Brand: "Kanuka"})

	e.router = New(Deps{
		States:    e.states,
		Carts:     e.carts,
		Orders:    orders,
		Discounts: discounts,
		Directory: dir,
		Sender:    e.sender,
		Logger:    logger,
	}, Config{
		Greeting:           "Welcome to Kanuka!",
		CatalogThumbnailID: "P1",
		BulkOrderContact:   "📱 +91 90000 00000",
		DeliveryRadiusKm:   6,
		StaffNumbers:       staff,
		AdminNumbers:       []string{admin},
	})
	return e
}

func (e *env) send(t *testing.T, ev Event) {
	t.Helper()
	if ev.From == "" {
		ev.From = customer
	}
	if err := e.router.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("handle %+v: %v", ev, err)
	}
}

func (e *env) step(t *testing.T) domain.Step {
	t.Helper()
	st, err := e.states.Get(context.Background(), customer)
	if errors.Is(err, domain.ErrNotFound) {
		return ""
	}
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	return st.Step
}

func text(body string) Event    { return Event{Type: EventText, Text: body} }
func button(id string) Event    { return Event{Type: EventButton, ReplyID: id} }
func listReply(id string) Event { return Event{Type: EventList, ReplyID: id} }

func (e *env) expectStep(t *testing.T, want domain.Step) {
	t.Helper()
	if got := e.step(t); got != want {
		t.Fatalf("expected step %q, got %q", want, got)
	}
}

func (e *env) fillCart(t *testing.T) {
	t.Helper()
	e.send(t, text("hi"))
	e.send(t, button(ButtonOrderNow))
	e.send(t, Event{Type: EventOrder, Items: []OrderItem{{ProductRetailerID: "P1", Quantity: 2}}})
	e.expectStep(t, domain.StepViewingCart)
}

func TestTakeawayCashOnDeliveryCheckout(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	e.send(t, text("Hi"))
	e.expectStep(t, domain.StepMainMenu)
	if m := e.sender.last(customer); m.kind != "buttons" || m.buttons[0].ID != ButtonOrderNow {
		t.Fatalf("expected main menu, got %+v", m)
	}

	e.send(t, button(ButtonOrderNow))
	e.expectStep(t, domain.StepViewingCatalog)
	if m := e.sender.last(customer); m.kind != "catalog" {
		t.Fatalf("expected catalog prompt, got %+v", m)
	}

	e.send(t, Event{Type: EventOrder, Items: []OrderItem{{ProductRetailerID: "P1", Quantity: 2}}})
	e.expectStep(t, domain.StepViewingCart)
	if total := e.carts.Get(ctx, customer).Total; total != 20000 {
		t.Fatalf("expected cart total 20000, got %d", total)
	}
	if m := e.sender.last(customer); !strings.Contains(m.body, "₹200.00") {
		t.Fatalf("expected cart summary with total, got %q", m.body)
	}

	e.send(t, button(ButtonProceedToCheckout))
	e.expectStep(t, domain.StepSelectingDeliveryType)
	e.send(t, button(ButtonTakeaway))
	e.expectStep(t, domain.StepSelectingBranch)
	e.send(t, listReply("kondapur"))
	e.expectStep(t, domain.StepSelectingPaymentMethod)
	e.send(t, button(ButtonCashOnDelivery))
	e.expectStep(t, domain.StepWaitingForAddress)
	e.send(t, text("123 Main St"))

	e.expectStep(t, "")
	if !e.carts.Get(ctx, customer).Empty() {
		t.Fatalf("expected cart cleared")
	}
	active, err := e.orders.ListActive(ctx)
	if err != nil || len(active) != 1 {
		t.Fatalf("expected one active order, got %d (%v)", len(active), err)
	}
	o := active[0]
	if o.Status != domain.OrderStatusPaid || o.Total != 20000 || o.Branch != "Kondapur" || o.DiscountAmount != 0 {
		t.Fatalf("unexpected order %+v", o)
	}
	if m := e.sender.last(branchDesk); !strings.Contains(m.body, o.ID) {
		t.Fatalf("expected branch alert, got %+v", m)
	}
}

func TestCheckoutWithDiscount(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	_ = e.discounts.Set(ctx, 10)

	e.fillCart(t)
	e.send(t, button(ButtonProceedToCheckout))
	e.send(t, button(ButtonTakeaway))
	e.send(t, listReply("Kondapur"))
	e.send(t, button(ButtonCashOnDelivery))
	e.send(t, text("123 Main St"))

	active, _ := e.orders.ListActive(ctx)
	if len(active) != 1 || active[0].Total != 18000 || active[0].DiscountAmount != 2000 {
		t.Fatalf("unexpected discounted order %+v", active)
	}
}

func TestUnrecognizedTextResetsToMainMenu(t *testing.T) {
	for _, step := range []domain.Step{
		domain.StepViewingCatalog,
		domain.StepViewingCart,
		domain.StepSelectingDeliveryType,
		domain.StepWaitingForLocation,
		domain.StepSelectingBranch,
		domain.StepSelectingPaymentMethod,
		"",
	} {
		e := newEnv(t, nil)
		if step != "" {
			_ = e.states.Save(context.Background(), customer, domain.ConversationState{Step: step})
		}
		e.send(t, text("what is the weather like"))
		e.expectStep(t, domain.StepMainMenu)
		if m := e.sender.last(customer); m.kind != "buttons" || m.body != "Welcome to Kanuka!" {
			t.Fatalf("step %q: expected main prompt, got %+v", step, m)
		}
	}
}

func TestCartKeywordFromAnyState(t *testing.T) {
	e := newEnv(t, nil)
	_ = e.states.Save(context.Background(), customer, domain.ConversationState{Step: domain.StepSelectingBranch})
	e.send(t, text("show my cart"))
	e.expectStep(t, domain.StepViewingCart)
	if m := e.sender.last(customer); !strings.Contains(m.body, "CART IS EMPTY") {
		t.Fatalf("expected empty cart summary, got %q", m.body)
	}
}

func TestCatalogSelectionOutsideCatalogPromptsCatalog(t *testing.T) {
	e := newEnv(t, nil)
	e.send(t, text("hello"))
	e.send(t, Event{Type: EventCatalogSelection, ProductID: "P1"})
	e.expectStep(t, domain.StepViewingCatalog)
	if !e.carts.Get(context.Background(), customer).Empty() {
		t.Fatalf("expected cart untouched")
	}
	if m := e.sender.last(customer); m.kind != "catalog" {
		t.Fatalf("expected catalog prompt, got %+v", m)
	}

	e.send(t, Event{Type: EventCatalogSelection, ProductID: "NOPE"})
	e.expectStep(t, domain.StepViewingCatalog)
	if m := e.sender.last(customer); m.body != productNotFoundText {
		t.Fatalf("expected product not found, got %q", m.body)
	}
}

func TestClearCartReturnsToCatalog(t *testing.T) {
	e := newEnv(t, nil)
	e.fillCart(t)
	e.send(t, button(ButtonClearCart))
	e.expectStep(t, domain.StepViewingCatalog)
	if !e.carts.Get(context.Background(), customer).Empty() {
		t.Fatalf("expected cart cleared")
	}
}

func TestCheckoutWithEmptyCart(t *testing.T) {
	e := newEnv(t, nil)
	e.send(t, button(ButtonProceedToCheckout))
	e.expectStep(t, domain.StepViewingCatalog)
}

func TestUnknownBranchKeepsState(t *testing.T) {
	e := newEnv(t, nil)
	e.fillCart(t)
	e.send(t, button(ButtonProceedToCheckout))
	e.send(t, button(ButtonTakeaway))
	e.sender.reset()

	e.send(t, listReply("Atlantis"))
	e.expectStep(t, domain.StepSelectingBranch)
	msgs := e.sender.all(customer)
	if len(msgs) != 2 || msgs[0].body != invalidBranchText || msgs[1].kind != "list" {
		t.Fatalf("expected rejection and branch list, got %+v", msgs)
	}
}

func TestOutOfStepButtonRepromptsCurrentStep(t *testing.T) {
	e := newEnv(t, nil)
	e.fillCart(t)
	e.send(t, button(ButtonPayNow))
	e.expectStep(t, domain.StepViewingCart)
	if m := e.sender.last(customer); m.kind != "buttons" || m.buttons[0].ID != ButtonContinueShopping {
		t.Fatalf("expected cart summary again, got %+v", m)
	}
}

func TestDeliveryLocationChecks(t *testing.T) {
	e := newEnv(t, nil)
	e.fillCart(t)
	e.send(t, button(ButtonProceedToCheckout))
	e.send(t, button(ButtonDelivery))
	e.expectStep(t, domain.StepWaitingForLocation)

	e.send(t, Event{Type: EventLocation, Location: &domain.Location{Latitude: 17.3616, Longitude: 78.4747}})
	e.expectStep(t, domain.StepWaitingForLocation)
	if m := e.sender.last(customer); !strings.Contains(m.body, "km away") {
		t.Fatalf("expected out of radius message, got %q", m.body)
	}

	e.send(t, Event{Type: EventLocation, Location: &domain.Location{Latitude: 17.4480, Longitude: 78.3900}})
	e.expectStep(t, domain.StepSelectingPaymentMethod)
	st, _ := e.states.Get(context.Background(), customer)
	if st.Branch != "Madhapur" {
		t.Fatalf("expected nearest branch bound, got %q", st.Branch)
	}
	if c := e.carts.Get(context.Background(), customer); c.Branch != "Madhapur" || c.DeliveryType != domain.DeliveryTypeDelivery {
		t.Fatalf("unexpected cart %+v", c)
	}

	e.send(t, button(ButtonCashOnDelivery))
	e.send(t, text("Flat 4, Hitech City"))
	active, _ := e.orders.ListActive(context.Background())
	if len(active) != 1 || active[0].DeliveryType != domain.DeliveryTypeDelivery || active[0].DeliveryAddress.Text != "Flat 4, Hitech City" {
		t.Fatalf("unexpected delivery order %+v", active)
	}
}

func TestPayNowSendsNoticeThenLink(t *testing.T) {
	e := newEnv(t, nil)
	e.fillCart(t)
	e.send(t, button(ButtonProceedToCheckout))
	e.send(t, button(ButtonTakeaway))
	e.send(t, listReply("Kondapur"))
	e.send(t, button(ButtonPayNow))
	e.sender.reset()

	e.send(t, text("123 Main St"))
	e.expectStep(t, "")
	msgs := e.sender.all(customer)
	if len(msgs) != 2 || msgs[0].body != paymentProcessingText || !strings.Contains(msgs[1].body, "https://rzp.io/i/ORD") {
		t.Fatalf("expected notice then link, got %+v", msgs)
	}
	if active, _ := e.orders.ListActive(context.Background()); len(active) != 0 {
		t.Fatalf("expected no order before payment, got %+v", active)
	}
	if e.carts.Get(context.Background(), customer).Empty() {
		t.Fatalf("expected cart kept until payment is confirmed")
	}
}

func TestPayNowGatewayFailure(t *testing.T) {
	e := newEnv(t, nil)
	e.gateway.err = domain.UpstreamErr("create payment link", errors.New("503"))
	e.fillCart(t)
	e.send(t, button(ButtonProceedToCheckout))
	e.send(t, button(ButtonTakeaway))
	e.send(t, listReply("Kondapur"))
	e.send(t, button(ButtonPayNow))
	e.send(t, text("123 Main St"))

	e.expectStep(t, "")
	if m := e.sender.last(customer); !strings.HasPrefix(m.body, "❌ Failed to generate payment link") {
		t.Fatalf("expected failure message, got %q", m.body)
	}
	if e.gateway.calls != 1 {
		t.Fatalf("expected one gateway call, got %d", e.gateway.calls)
	}
}

func TestPlaceOrderFailureStillClearsState(t *testing.T) {
	e := newEnv(t, nil)
	_ = e.states.Save(context.Background(), customer, domain.ConversationState{
		Step:          domain.StepWaitingForAddress,
		PaymentMethod: domain.PaymentMethodCashOnDelivery,
	})
	e.send(t, text("123 Main St"))
	e.expectStep(t, "")
	if m := e.sender.last(customer); !strings.Contains(m.body, "cart is empty") {
		t.Fatalf("expected empty cart message, got %q", m.body)
	}
}

func TestStaffStatusCommand(t *testing.T) {
	e := newEnv(t, nil)
	e.fillCart(t)
	e.send(t, button(ButtonProceedToCheckout))
	e.send(t, button(ButtonTakeaway))
	e.send(t, listReply("Kondapur"))
	e.send(t, button(ButtonCashOnDelivery))
	e.send(t, text("123 Main St"))
	active, _ := e.orders.ListActive(context.Background())
	id := active[0].ID

	e.send(t, Event{From: branchDesk, Type: EventText, Text: "delivered " + id})
	if m := e.sender.last(branchDesk); !strings.Contains(m.body, "status updated to *Delivered*") {
		t.Fatalf("expected staff acknowledgement, got %q", m.body)
	}
	if m := e.sender.last(customer); !strings.Contains(m.body, "Delivered") {
		t.Fatalf("expected customer notification, got %q", m.body)
	}

	e.send(t, Event{From: branchDesk, Type: EventText, Text: "delivered " + id})
	if m := e.sender.last(branchDesk); !strings.Contains(m.body, "not found") {
		t.Fatalf("expected not found reply, got %q", m.body)
	}

	e.send(t, Event{From: branchDesk, Type: EventText, Text: "ready"})
	if m := e.sender.last(branchDesk); m.body != ordersvc.InvalidCommandReply {
		t.Fatalf("expected invalid format reply, got %q", m.body)
	}
}

func TestStatusCommandFromCustomerIsNotAuthorized(t *testing.T) {
	e := newEnv(t, []string{"919888888888"})
	e.send(t, text("ready ORD20250808E8BF12AB34CD"))
	e.expectStep(t, domain.StepMainMenu)
}

func TestAdminDiscountCommands(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	e.send(t, Event{From: admin, Type: EventText, Text: "set discount 15"})
	if pct, _ := e.discounts.Get(ctx); pct != 15 {
		t.Fatalf("expected discount 15, got %v", pct)
	}
	if m := e.sender.last(admin); m.body != "✅ Discount set to 15%." {
		t.Fatalf("unexpected reply %q", m.body)
	}

	e.send(t, Event{From: admin, Type: EventText, Text: "set discount 150"})
	if pct, _ := e.discounts.Get(ctx); pct != 15 {
		t.Fatalf("expected discount unchanged, got %v", pct)
	}

	e.send(t, Event{From: admin, Type: EventText, Text: "clear discount"})
	if pct, _ := e.discounts.Get(ctx); pct != 0 {
		t.Fatalf("expected discount cleared, got %v", pct)
	}

	e.send(t, text("set discount 50"))
	if pct, _ := e.discounts.Get(ctx); pct != 0 {
		t.Fatalf("expected customer command ignored, got %v", pct)
	}
}

func TestBulkOrdersClearsState(t *testing.T) {
	e := newEnv(t, nil)
	e.send(t, text("hi"))
	e.send(t, button(ButtonBulkOrders))
	e.expectStep(t, "")
	if m := e.sender.last(customer); !strings.Contains(m.body, "BULK ORDER") {
		t.Fatalf("expected bulk order info, got %q", m.body)
	}
}

func TestEnvelopeEvents(t *testing.T) {
	payload := `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[
		{"field":"messages","value":{"messages":[{"from":"+919111111111","type":"text","text":{"body":" Hi "}}]}},
		{"field":"messages","value":{"statuses":[{"id":"x"}]}},
		{"field":"messages","value":{"messages":[{"from":"919111111111","type":"interactive","interactive":{"type":"button_reply","button_reply":{"id":"ORDER_NOW","title":"Order"}}}]}},
		{"field":"messages","value":{"messages":[{"from":"919111111111","type":"order","order":{"product_items":[{"product_retailer_id":"P1","quantity":3,"item_price":100,"currency":"INR"}]}}]}},
		{"field":"messages","value":{"messages":[{"from":"919111111111","type":"location","location":{"latitude":17.4,"longitude":78.3}}]}},
		{"field":"messages","value":{"messages":[{"from":"919111111111","type":"sticker"}]}}
	]}]}`
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	events := env.Events()
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	if events[0].From != customer || events[0].Type != EventText || events[0].Text != "Hi" {
		t.Fatalf("unexpected text event %+v", events[0])
	}
	if events[1].Type != EventButton || events[1].ReplyID != ButtonOrderNow {
		t.Fatalf("unexpected button event %+v", events[1])
	}
	if events[2].Type != EventOrder || events[2].Items[0].Quantity != 3 {
		t.Fatalf("unexpected order event %+v", events[2])
	}
	if events[3].Type != EventLocation || events[3].Location.Latitude != 17.4 {
		t.Fatalf("unexpected location event %+v", events[3])
	}
	if events[4].Type != EventUnsupported {
		t.Fatalf("expected unsupported event, got %+v", events[4])
	}
}

func TestConcurrentEventsForOneCustomerAreSerialized(t *testing.T) {
	e := newEnv(t, nil)
	e.send(t, text("hi"))
	e.send(t, button(ButtonOrderNow))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.router.HandleEvent(context.Background(), Event{From: customer, Type: EventOrder, Items: []OrderItem{{ProductRetailerID: "P1", Quantity: 1}}})
		}()
	}
	wg.Wait()

	// Events alternate between adding in the catalog step and re-prompting
	// it from the cart step; serialization keeps the cart consistent.
	c := e.carts.Get(context.Background(), customer)
	if len(c.Lines) != 1 || c.Lines[0].Quantity < 1 || c.Lines[0].Quantity > 5 {
		t.Fatalf("unexpected cart lines %+v", c.Lines)
	}
	if c.Total != int64(c.Lines[0].Quantity)*10000 {
		t.Fatalf("expected total to match lines, got %d for %+v", c.Total, c.Lines)
	}
}
