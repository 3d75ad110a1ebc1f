// Package conversation routes inbound chat events through the per-customer
// ordering dialogue.
package conversation

import (
	"context"
	"errors"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chatcommerce/internal/domain"
	"chatcommerce/internal/geo"
	"chatcommerce/internal/lock"
	ordersvc "chatcommerce/internal/service/order"
	"chatcommerce/internal/whatsapp"
)

var tracer = otel.Tracer("chatcommerce/conversation")

type stateStore interface {
	Get(ctx context.Context, userID string) (*domain.ConversationState, error)
	Save(ctx context.Context, userID string, st domain.ConversationState) error
	Clear(ctx context.Context, userID string) error
}

type cartService interface {
	Get(ctx context.Context, userID string) *domain.Cart
	AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error)
	SetBranch(ctx context.Context, userID, branch string) error
	SetDeliveryType(ctx context.Context, userID string, dt domain.DeliveryType) error
	SetPaymentMethod(ctx context.Context, userID string, pm domain.PaymentMethod) error
	SetLocation(ctx context.Context, userID string, loc domain.Location) error
	SetDeliveryAddress(ctx context.Context, userID, address string) error
	Clear(ctx context.Context, userID string) error
}

type orderService interface {
	PlaceOrder(ctx context.Context, userID string, dt domain.DeliveryType, address string, pm domain.PaymentMethod) (string, error)
	CreatePending(ctx context.Context, userID string, dt domain.DeliveryType, address string) (*domain.PendingOrder, error)
	ProcessPayment(ctx context.Context, userID, orderID string) (string, error)
	AbandonPending(ctx context.Context, orderID string)
	UpdateOrderStatusFromCommand(ctx context.Context, text string) (*domain.Order, error)
}

type discountAdmin interface {
	Set(ctx context.Context, percentage float64) error
	Clear(ctx context.Context) error
}

type branchDirectory interface {
	Branches() []domain.Branch
	Branch(name string) (domain.Branch, bool)
	IsBranchContact(phone string) bool
}

type Deps struct {
	States    stateStore
	Carts     cartService
	Orders    orderService
	Discounts discountAdmin
	Directory branchDirectory
	Sender    whatsapp.Sender
	Locks     *lock.Keyed
	Logger    *log.Logger
}

type Config struct {
	Greeting string
	// CatalogThumbnailID is the product shown on the catalog message.
	CatalogThumbnailID string
	BulkOrderContact   string
	DeliveryRadiusKm   float64
	StaffNumbers       []string
	AdminNumbers       []string
}

// Router dispatches normalized events. Events from one customer are handled
// one at a time.
type Router struct {
	states    stateStore
	carts     cartService
	orders    orderService
	discounts discountAdmin
	directory branchDirectory
	sender    whatsapp.Sender
	locks     *lock.Keyed
	logger    *log.Logger
	cfg       Config
}

func New(deps Deps, cfg Config) *Router {
	locks := deps.Locks
	if locks == nil {
		locks = lock.NewKeyed()
	}
	return &Router{
		states:    deps.States,
		carts:     deps.Carts,
		orders:    deps.Orders,
		discounts: deps.Discounts,
		directory: deps.Directory,
		sender:    deps.Sender,
		locks:     locks,
		logger:    deps.Logger,
		cfg:       cfg,
	}
}

// Handle processes every message in env. Failures are reported to the
// customer and logged; only context cancellation is returned.
func (r *Router) Handle(ctx context.Context, env Envelope) error {
	for _, ev := range env.Events() {
		if err := r.HandleEvent(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// HandleEvent processes one event under the customer's lock.
func (r *Router) HandleEvent(ctx context.Context, ev Event) error {
	ctx, span := tracer.Start(ctx, "conversation.Handle", trace.WithAttributes(
		attribute.String("user.id", ev.From),
		attribute.String("message.type", string(ev.Type)),
	))
	defer span.End()

	unlock, err := r.locks.Lock(ctx, "user:"+ev.From)
	if err != nil {
		return err
	}
	defer unlock()

	st := r.loadState(ctx, ev.From)
	span.SetAttributes(attribute.String("conversation.step", string(st.Step)))

	switch ev.Type {
	case EventText:
		r.handleText(ctx, ev.From, ev.Text, st)
	case EventButton:
		r.handleButton(ctx, ev.From, ev.ReplyID, st)
	case EventList:
		r.handleList(ctx, ev.From, ev.ReplyID, st)
	case EventCatalogSelection:
		r.handleCatalogItems(ctx, ev.From, []OrderItem{{ProductRetailerID: ev.ProductID, Quantity: 1}}, st, true)
	case EventOrder:
		r.handleCatalogItems(ctx, ev.From, ev.Items, st, false)
	case EventLocation:
		r.handleLocation(ctx, ev.From, *ev.Location, st)
	default:
		r.logger.Printf("unsupported message from %s", ev.From)
		r.reprompt(ctx, ev.From, st)
	}
	return nil
}

func (r *Router) loadState(ctx context.Context, userID string) domain.ConversationState {
	st, err := r.states.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Printf("load state for %s: %v", userID, err)
		}
		return domain.ConversationState{}
	}
	return *st
}

func (r *Router) setState(ctx context.Context, userID string, st domain.ConversationState) {
	if err := r.states.Save(ctx, userID, st); err != nil {
		r.logger.Printf("save state for %s: %v", userID, err)
	}
}

func (r *Router) clearState(ctx context.Context, userID string) {
	if err := r.states.Clear(ctx, userID); err != nil {
		r.logger.Printf("clear state for %s: %v", userID, err)
	}
}

func (r *Router) goTo(ctx context.Context, userID string, step domain.Step) {
	r.setState(ctx, userID, domain.ConversationState{Step: step})
	r.prompt(ctx, userID, step)
}

// reset is the recovery path for unknown, expired or unrecognized input.
func (r *Router) reset(ctx context.Context, userID string) {
	r.goTo(ctx, userID, domain.StepMainMenu)
}

// reprompt repeats the current step's prompt, or resets when there is none.
func (r *Router) reprompt(ctx context.Context, userID string, st domain.ConversationState) {
	if st.Step == "" {
		r.reset(ctx, userID)
		return
	}
	r.prompt(ctx, userID, st.Step)
}

func (r *Router) handleText(ctx context.Context, from, text string, st domain.ConversationState) {
	if r.isAdmin(from) && r.handleAdminCommand(ctx, from, text) {
		return
	}
	if ordersvc.LooksLikeStatusCommand(text) && r.isStaff(from) {
		r.handleStatusCommand(ctx, from, text)
		return
	}
	if st.Step == domain.StepWaitingForAddress {
		r.handleAddress(ctx, from, text, st)
		return
	}

	lower := strings.ToLower(text)
	if isGreeting(lower) {
		r.reset(ctx, from)
		return
	}
	if strings.Contains(lower, "cart") {
		r.goTo(ctx, from, domain.StepViewingCart)
		return
	}
	if st.Step == domain.StepSelectingBranch {
		if b, ok := r.directory.Branch(text); ok {
			r.selectBranch(ctx, from, b)
			return
		}
	}
	if id := textButton(st.Step, lower); id != "" {
		r.handleButton(ctx, from, id, st)
		return
	}
	r.reset(ctx, from)
}

// textButton maps typed keywords onto the buttons of the current step.
func textButton(step domain.Step, lower string) string {
	switch step {
	case domain.StepMainMenu:
		switch {
		case strings.Contains(lower, "bulk"):
			return ButtonBulkOrders
		case strings.Contains(lower, "order"):
			return ButtonOrderNow
		}
	case domain.StepViewingCart:
		switch {
		case strings.Contains(lower, "checkout"):
			return ButtonProceedToCheckout
		case strings.Contains(lower, "clear"):
			return ButtonClearCart
		case strings.Contains(lower, "continue"):
			return ButtonContinueShopping
		}
	case domain.StepSelectingDeliveryType:
		switch {
		case strings.Contains(lower, "delivery"):
			return ButtonDelivery
		case strings.Contains(lower, "takeaway"), strings.Contains(lower, "pickup"):
			return ButtonTakeaway
		}
	case domain.StepSelectingPaymentMethod:
		switch {
		case strings.Contains(lower, "pay now"):
			return ButtonPayNow
		case strings.Contains(lower, "cash"):
			return ButtonCashOnDelivery
		}
	}
	return ""
}

func (r *Router) handleButton(ctx context.Context, from, id string, st domain.ConversationState) {
	switch {
	case strings.HasPrefix(id, ButtonOrderNow), id == ButtonContinueShopping:
		r.goTo(ctx, from, domain.StepViewingCatalog)
		return
	case id == ButtonBulkOrders:
		r.sendBulkOrderInfo(ctx, from)
		r.clearState(ctx, from)
		return
	case id == ButtonProceedToCheckout:
		if r.carts.Get(ctx, from).Empty() {
			r.sendText(ctx, from, r.friendlyError(domain.ErrEmptyCart))
			r.goTo(ctx, from, domain.StepViewingCatalog)
			return
		}
		r.goTo(ctx, from, domain.StepSelectingDeliveryType)
		return
	case id == ButtonClearCart:
		if err := r.carts.Clear(ctx, from); err != nil {
			r.sendText(ctx, from, r.friendlyError(err))
			return
		}
		r.sendText(ctx, from, cartClearedText)
		r.goTo(ctx, from, domain.StepViewingCatalog)
		return
	}

	switch {
	case st.Step == domain.StepSelectingDeliveryType && (id == ButtonDelivery || id == ButtonTakeaway):
		dt, next := domain.DeliveryTypeDelivery, domain.StepWaitingForLocation
		if id == ButtonTakeaway {
			dt, next = domain.DeliveryTypeTakeaway, domain.StepSelectingBranch
		}
		if err := r.carts.SetDeliveryType(ctx, from, dt); err != nil {
			r.sendText(ctx, from, r.friendlyError(err))
			return
		}
		r.goTo(ctx, from, next)
	case st.Step == domain.StepSelectingPaymentMethod && (id == ButtonPayNow || id == ButtonCashOnDelivery):
		pm := domain.PaymentMethodCashOnDelivery
		if id == ButtonPayNow {
			pm = domain.PaymentMethodPayNow
		}
		if err := r.carts.SetPaymentMethod(ctx, from, pm); err != nil {
			r.sendText(ctx, from, r.friendlyError(err))
			return
		}
		r.setState(ctx, from, domain.ConversationState{
			Step:          domain.StepWaitingForAddress,
			Branch:        st.Branch,
			PaymentMethod: pm,
		})
		r.sendAddressRequest(ctx, from)
	default:
		r.logger.Printf("button %s from %s ignored in step %q", id, from, st.Step)
		r.reprompt(ctx, from, st)
	}
}

func (r *Router) handleList(ctx context.Context, from, id string, st domain.ConversationState) {
	if st.Step != domain.StepSelectingBranch {
		r.reprompt(ctx, from, st)
		return
	}
	b, ok := r.directory.Branch(id)
	if !ok {
		r.logger.Printf("unknown branch %q selected by %s", id, from)
		r.sendText(ctx, from, invalidBranchText)
		r.sendBranchSelection(ctx, from)
		return
	}
	r.selectBranch(ctx, from, b)
}

func (r *Router) selectBranch(ctx context.Context, from string, b domain.Branch) {
	if err := r.carts.SetBranch(ctx, from, b.Name); err != nil {
		r.sendText(ctx, from, r.friendlyError(err))
		return
	}
	if err := r.carts.SetDeliveryType(ctx, from, domain.DeliveryTypeTakeaway); err != nil {
		r.sendText(ctx, from, r.friendlyError(err))
		return
	}
	r.setState(ctx, from, domain.ConversationState{Step: domain.StepSelectingPaymentMethod, Branch: b.Name})
	r.sendPaymentOptions(ctx, from)
}

func (r *Router) handleLocation(ctx context.Context, from string, loc domain.Location, st domain.ConversationState) {
	if st.Step != domain.StepWaitingForLocation {
		r.reprompt(ctx, from, st)
		return
	}
	if err := r.carts.SetLocation(ctx, from, loc); err != nil {
		r.sendText(ctx, from, r.friendlyError(err))
		return
	}
	ok, branch, dist, err := geo.IsDeliverable(loc, r.directory.Branches(), r.cfg.DeliveryRadiusKm)
	if err != nil {
		r.sendText(ctx, from, r.friendlyError(err))
		return
	}
	if !ok {
		r.sendText(ctx, from, r.friendlyError(&domain.OutOfRadiusError{
			Branch:     branch.Name,
			DistanceKm: dist,
			RadiusKm:   r.cfg.DeliveryRadiusKm,
		}))
		return
	}
	if err := r.carts.SetBranch(ctx, from, branch.Name); err != nil {
		r.sendText(ctx, from, r.friendlyError(err))
		return
	}
	r.setState(ctx, from, domain.ConversationState{Step: domain.StepSelectingPaymentMethod, Branch: branch.Name})
	r.sendPaymentOptions(ctx, from)
}

// handleCatalogItems adds catalog picks to the cart. A single selection of an
// unknown product is reported; unknown lines of a multi-item order are skipped.
func (r *Router) handleCatalogItems(ctx context.Context, from string, items []OrderItem, st domain.ConversationState, single bool) {
	if st.Step != domain.StepViewingCatalog {
		r.goTo(ctx, from, domain.StepViewingCatalog)
		return
	}
	for _, it := range items {
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		_, err := r.carts.AddItem(ctx, from, it.ProductRetailerID, qty)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrUnknownProduct) && single:
			r.sendText(ctx, from, productNotFoundText)
			return
		case errors.Is(err, domain.ErrUnknownProduct):
			r.logger.Printf("unknown product %q ordered by %s", it.ProductRetailerID, from)
		default:
			r.sendText(ctx, from, r.friendlyError(err))
			return
		}
	}
	r.goTo(ctx, from, domain.StepViewingCart)
}

// handleAddress completes checkout. The conversation state is cleared
// whatever the outcome.
func (r *Router) handleAddress(ctx context.Context, from, address string, st domain.ConversationState) {
	defer r.clearState(ctx, from)

	if err := r.carts.SetDeliveryAddress(ctx, from, address); err != nil {
		r.logger.Printf("store delivery address for %s: %v", from, err)
	}
	cart := r.carts.Get(ctx, from)

	pm := st.PaymentMethod
	if !pm.Valid() {
		pm = cart.PaymentMethod
	}
	if !pm.Valid() {
		pm = domain.PaymentMethodCashOnDelivery
	}

	if pm == domain.PaymentMethodCashOnDelivery {
		if _, err := r.orders.PlaceOrder(ctx, from, cart.DeliveryType, address, pm); err != nil {
			r.logger.Printf("place order for %s: %v", from, err)
			r.sendText(ctx, from, "❌ Failed to place order: "+r.friendlyError(err))
		}
		return
	}

	r.sendText(ctx, from, paymentProcessingText)
	p, err := r.orders.CreatePending(ctx, from, cart.DeliveryType, address)
	if err != nil {
		r.logger.Printf("create pending order for %s: %v", from, err)
		r.sendText(ctx, from, "❌ Failed to generate payment link: "+r.friendlyError(err))
		return
	}
	if _, err := r.orders.ProcessPayment(ctx, from, p.ID); err != nil {
		r.logger.Printf("process payment for %s: %v", p.ID, err)
		r.orders.AbandonPending(ctx, p.ID)
		r.sendText(ctx, from, "❌ Failed to generate payment link: "+r.friendlyError(err))
	}
}
