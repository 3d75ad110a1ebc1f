package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chatcommerce/internal/domain"
	"chatcommerce/internal/geo"
	"chatcommerce/internal/lock"
	"chatcommerce/internal/payment"
)

const (
	// DefaultReminderDelay is how long after placement a cart reminder falls due.
	DefaultReminderDelay = 2 * time.Hour

	maxIDAttempts = 5
)

var tracer = otel.Tracer("chatcommerce/service/order")

type Service struct {
	orders    orderRepo
	carts     cartStore
	states    stateClearer
	discounts discountReader
	reminders reminderScheduler
	directory branchDirectory
	messenger messenger
	payments  paymentGateway
	locks     *lock.Keyed
	logger    *log.Logger
	cfg       Config
	now       func() time.Time
	newID     func(time.Time) string
}

type orderRepo interface {
	Create(ctx context.Context, o *domain.Order) error
	Reindex(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	GetArchived(ctx context.Context, id string) (*domain.Order, error)
	ListActive(ctx context.Context) ([]domain.Order, error)
	ListByBranch(ctx context.Context, branch string) ([]domain.Order, error)
	Update(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error)
	Archive(ctx context.Context, o *domain.Order) error
	CreatePending(ctx context.Context, p *domain.PendingOrder) error
	GetPending(ctx context.Context, id string) (*domain.PendingOrder, error)
	DeletePending(ctx context.Context, id string) error
}

type cartStore interface {
	Get(ctx context.Context, userID string) *domain.Cart
	Clear(ctx context.Context, userID string) error
}

type stateClearer interface {
	Clear(ctx context.Context, userID string) error
}

type discountReader interface {
	Get(ctx context.Context) (float64, error)
}

type reminderScheduler interface {
	Schedule(ctx context.Context, r domain.CartReminder) error
}

type branchDirectory interface {
	Branches() []domain.Branch
	Branch(name string) (domain.Branch, bool)
}

type messenger interface {
	SendText(ctx context.Context, to, body string) error
}

type paymentGateway interface {
	CreatePaymentLink(ctx context.Context, req payment.LinkRequest) (*payment.Link, error)
}

// Deps are the collaborators of the order lifecycle.
type Deps struct {
	Orders    orderRepo
	Carts     cartStore
	States    stateClearer
	Discounts discountReader
	Reminders reminderScheduler
	Directory branchDirectory
	Messenger messenger
	Payments  paymentGateway
	Locks     *lock.Keyed
	Logger    *log.Logger
}

type Config struct {
	DeliveryRadiusKm float64
	ReminderDelay    time.Duration
	// Location is the timezone used for the order id date stamp.
	Location *time.Location
	Brand    string
}

func New(deps Deps, cfg Config) *Service {
	if cfg.ReminderDelay <= 0 {
		cfg.ReminderDelay = DefaultReminderDelay
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	locks := deps.Locks
	if locks == nil {
		locks = lock.NewKeyed()
	}
	return &Service{
		orders:    deps.Orders,
		carts:     deps.Carts,
		states:    deps.States,
		discounts: deps.Discounts,
		reminders: deps.Reminders,
		directory: deps.Directory,
		messenger: deps.Messenger,
		payments:  deps.Payments,
		locks:     locks,
		logger:    deps.Logger,
		cfg:       cfg,
		now:       time.Now,
		newID:     NewOrderID,
	}
}

// NewOrderID returns ORD + YYYYMMDD + 12 random hex characters.
func NewOrderID(t time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
	return "ORD" + t.Format("20060102") + suffix
}

type placeInput struct {
	userID        string
	cart          *domain.Cart
	deliveryType  domain.DeliveryType
	address       string
	paymentMethod domain.PaymentMethod
	orderID       string
	// discount overrides the live brand discount when set.
	discount *float64
}

// PlaceOrder turns the customer's live cart into an order and returns its id.
func (s *Service) PlaceOrder(ctx context.Context, userID string, dt domain.DeliveryType, address string, pm domain.PaymentMethod) (string, error) {
	ctx, span := tracer.Start(ctx, "order.Place", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	o, err := s.place(ctx, placeInput{
		userID:        userID,
		cart:          s.carts.Get(ctx, userID),
		deliveryType:  dt,
		address:       address,
		paymentMethod: pm,
	})
	if err != nil {
		recordError(span, err)
		return "", err
	}
	span.SetAttributes(attribute.String("order.id", o.ID))
	s.finalize(ctx, o)
	return o.ID, nil
}

// CreatePending snapshots the live cart for an online payment and returns the
// pending order. Delivery checks run first so a customer is never charged for
// an order that cannot be placed.
func (s *Service) CreatePending(ctx context.Context, userID string, dt domain.DeliveryType, address string) (*domain.PendingOrder, error) {
	cart := s.carts.Get(ctx, userID)
	if cart.Empty() {
		return nil, domain.ErrEmptyCart
	}
	dt = resolveDeliveryType(dt, cart)
	if _, _, err := s.resolveFulfillment(cart, dt, address); err != nil {
		return nil, err
	}

	pct, err := s.discounts.Get(ctx)
	if err != nil {
		s.logger.Printf("read discount for pending order of %s: %v", userID, err)
		return nil, err
	}

	now := s.now()
	p := &domain.PendingOrder{
		UserID:             userID,
		Cart:               *cart,
		DeliveryType:       dt,
		DeliveryAddress:    address,
		PaymentMethod:      domain.PaymentMethodPayNow,
		CreatedAt:          now.UTC(),
		DiscountPercentage: &pct,
	}
	for i := 0; i < maxIDAttempts; i++ {
		p.ID = s.newID(now.In(s.cfg.Location))
		err := s.orders.CreatePending(ctx, p)
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			s.logger.Printf("create pending order for %s: %v", userID, err)
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("generate unique pending order id: %w", domain.ErrAlreadyExists)
}

// AbandonPending drops a pending order whose payment could not be started.
func (s *Service) AbandonPending(ctx context.Context, orderID string) {
	if err := s.orders.DeletePending(ctx, orderID); err != nil {
		s.logger.Printf("abandon pending order %s: %v", orderID, err)
	}
}

// ProcessPayment requests a payment link for the discounted total of a pending
// order and sends it to the customer. Payment is confirmed later by ConfirmOrder.
func (s *Service) ProcessPayment(ctx context.Context, userID, orderID string) (string, error) {
	ctx, span := tracer.Start(ctx, "order.ProcessPayment", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	p, err := s.orders.GetPending(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrPendingOrderNotFound
	}
	if err != nil {
		recordError(span, err)
		s.logger.Printf("load pending order %s: %v", orderID, err)
		return "", err
	}

	pct, err := s.pendingDiscount(ctx, p)
	if err != nil {
		recordError(span, err)
		s.logger.Printf("read discount for payment %s: %v", orderID, err)
		return "", err
	}
	_, _, total := applyDiscount(p.Cart.Total, pct)

	link, err := s.payments.CreatePaymentLink(ctx, payment.LinkRequest{
		Amount:      total,
		Reference:   orderID,
		Description: fmt.Sprintf("%s order %s", s.cfg.Brand, orderID),
		Contact:     userID,
	})
	if err != nil {
		recordError(span, err)
		s.logger.Printf("create payment link for %s: %v", orderID, err)
		return "", err
	}
	if err := s.messenger.SendText(ctx, userID, paymentLinkMessage(orderID, total, link.URL)); err != nil {
		recordError(span, err)
		s.logger.Printf("send payment link for %s: %v", orderID, err)
		return "", err
	}
	return link.URL, nil
}

// ConfirmOrder promotes a paid pending order to an active order under the same
// id. A second confirmation of the same id fails with ErrPendingOrderNotFound.
// The pending record is kept until the order is stored and marked Paid, so a
// redelivered payment event resumes a confirmation that failed part way.
func (s *Service) ConfirmOrder(ctx context.Context, customer, orderID string, pm domain.PaymentMethod) (string, error) {
	ctx, span := tracer.Start(ctx, "order.Confirm", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	unlock, err := s.locks.Lock(ctx, "pending:"+orderID)
	if err != nil {
		return "", err
	}
	defer unlock()

	p, err := s.orders.GetPending(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrPendingOrderNotFound
	}
	if err != nil {
		recordError(span, err)
		s.logger.Printf("load pending order %s: %v", orderID, err)
		return "", err
	}
	if customer != "" && customer != p.UserID {
		s.logger.Printf("confirm order %s: payer %s differs from customer %s", orderID, customer, p.UserID)
	}

	// Same key the conversation router holds while handling the customer's
	// events. Router handlers never take pending locks.
	unlockUser, err := s.locks.Lock(ctx, "user:"+p.UserID)
	if err != nil {
		return "", err
	}
	defer unlockUser()

	if pm == "" {
		pm = p.PaymentMethod
	}
	discount, err := s.pendingDiscount(ctx, p)
	if err != nil {
		recordError(span, err)
		s.logger.Printf("read discount for order %s: %v", orderID, err)
		return "", err
	}

	o, err := s.place(ctx, placeInput{
		userID:        p.UserID,
		cart:          &p.Cart,
		deliveryType:  p.DeliveryType,
		address:       p.DeliveryAddress,
		paymentMethod: pm,
		orderID:       p.ID,
		discount:      &discount,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		o, err = s.resumePlaced(ctx, p)
	}
	if err != nil {
		recordError(span, err)
		return "", err
	}

	if o.Status == domain.OrderStatusPending {
		paid, err := s.transition(ctx, o.ID, domain.OrderStatusPaid)
		if err != nil {
			recordError(span, err)
			s.logger.Printf("mark order %s paid: %v", o.ID, err)
			return "", err
		}
		o = paid
	}

	if err := s.orders.DeletePending(ctx, orderID); err != nil {
		s.logger.Printf("delete pending order %s: %v", orderID, err)
	}
	if err := s.states.Clear(ctx, p.UserID); err != nil {
		s.logger.Printf("clear state for %s: %v", p.UserID, err)
	}
	s.finalize(ctx, o)
	return o.ID, nil
}

// resumePlaced returns the order an earlier confirmation of p already stored,
// restoring its indexes in case that attempt failed before writing them.
func (s *Service) resumePlaced(ctx context.Context, p *domain.PendingOrder) (*domain.Order, error) {
	o, err := s.orders.Get(ctx, p.ID)
	if err != nil {
		s.logger.Printf("load placed order %s: %v", p.ID, err)
		return nil, err
	}
	if o.UserID != p.UserID {
		s.logger.Printf("order id %s already belongs to %s", p.ID, o.UserID)
		return nil, fmt.Errorf("order %s held by another customer: %w", p.ID, domain.ErrAlreadyExists)
	}
	if err := s.orders.Reindex(ctx, o); err != nil {
		s.logger.Printf("reindex order %s: %v", o.ID, err)
		return nil, err
	}
	s.logger.Printf("resuming confirmation of order %s", o.ID)
	return o, nil
}

// pendingDiscount is the discount snapshotted on p, or the live brand
// discount for records written before snapshots existed.
func (s *Service) pendingDiscount(ctx context.Context, p *domain.PendingOrder) (float64, error) {
	if p.DiscountPercentage != nil {
		return *p.DiscountPercentage, nil
	}
	return s.discounts.Get(ctx)
}

// UpdateOrderStatusFromCommand applies a staff command such as
// "delivered ORD20250808E8BF12AB34CD" and returns the updated order.
func (s *Service) UpdateOrderStatusFromCommand(ctx context.Context, text string) (*domain.Order, error) {
	status, id, err := ParseStatusCommand(text)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "order.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	o, err := s.transition(ctx, id, status)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	if err := s.messenger.SendText(ctx, o.UserID, statusNotification(o)); err != nil {
		s.logger.Printf("notify %s of order %s status: %v", o.UserID, o.ID, err)
	}
	if o.Status.Terminal() {
		if err := s.orders.Archive(ctx, o); err != nil {
			recordError(span, err)
			s.logger.Printf("archive order %s: %v", o.ID, err)
			return o, err
		}
	}
	return o, nil
}

// Get returns an order by id, looking in the archive when it is no longer
// active.
func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	o, err := s.orders.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		o, err = s.orders.GetArchived(ctx, id)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	return o, err
}

// List returns the active orders, only those of branch when it is non-empty.
func (s *Service) List(ctx context.Context, branch string) ([]domain.Order, error) {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return s.orders.ListActive(ctx)
	}
	b, ok := s.directory.Branch(branch)
	if !ok {
		return nil, domain.ErrBranchNotFound
	}
	return s.orders.ListByBranch(ctx, b.Name)
}

func (s *Service) transition(ctx context.Context, id string, to domain.OrderStatus) (*domain.Order, error) {
	o, err := s.orders.Update(ctx, id, func(o *domain.Order) error {
		if !domain.CanTransition(o.Status, to) {
			return &domain.IllegalTransitionError{From: o.Status, To: to}
		}
		o.Status = to
		o.UpdatedAt = s.now().UTC()
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil && domain.KindOf(err) == domain.KindStore {
		s.logger.Printf("update order %s status: %v", id, err)
	}
	return o, err
}

// place validates the cart and writes the order record. It has no other side
// effects; finalize performs them once the record is durable.
func (s *Service) place(ctx context.Context, in placeInput) (*domain.Order, error) {
	if in.cart == nil || in.cart.Empty() {
		return nil, domain.ErrEmptyCart
	}

	var pct float64
	if in.discount != nil {
		pct = *in.discount
	} else {
		var err error
		if pct, err = s.discounts.Get(ctx); err != nil {
			s.logger.Printf("read discount: %v", err)
			return nil, err
		}
	}

	dt := resolveDeliveryType(in.deliveryType, in.cart)
	branch, address, err := s.resolveFulfillment(in.cart, dt, in.address)
	if err != nil {
		return nil, err
	}

	pm := in.paymentMethod
	if !pm.Valid() {
		pm = domain.PaymentMethodCashOnDelivery
	}
	status := domain.OrderStatusPending
	if pm == domain.PaymentMethodCashOnDelivery {
		status = domain.OrderStatusPaid
	}

	original := in.cart.Total
	discountPct, discountAmount, total := applyDiscount(original, pct)

	now := s.now()
	o := &domain.Order{
		UserID:             in.userID,
		Branch:             branch,
		Items:              append([]domain.CartLine(nil), in.cart.Lines...),
		OriginalTotal:      original,
		DiscountPercentage: discountPct,
		DiscountAmount:     discountAmount,
		Total:              total,
		Status:             status,
		OrderDate:          now.UTC(),
		DeliveryType:       dt,
		DeliveryAddress:    address,
		TextAddress:        strings.TrimSpace(in.address),
		PaymentMethod:      pm,
		UpdatedAt:          now.UTC(),
	}

	if in.orderID != "" {
		o.ID = in.orderID
		if err := s.orders.Create(ctx, o); err != nil {
			s.logger.Printf("create order %s: %v", o.ID, err)
			return nil, err
		}
		return o, nil
	}
	for i := 0; i < maxIDAttempts; i++ {
		o.ID = s.newID(now.In(s.cfg.Location))
		err := s.orders.Create(ctx, o)
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			s.logger.Printf("create order for %s: %v", in.userID, err)
			return nil, err
		}
		return o, nil
	}
	return nil, fmt.Errorf("generate unique order id: %w", domain.ErrAlreadyExists)
}

// resolveFulfillment returns the branch and delivery address for an order.
func (s *Service) resolveFulfillment(cart *domain.Cart, dt domain.DeliveryType, text string) (string, domain.Address, error) {
	if dt == domain.DeliveryTypeDelivery {
		if cart.Location == nil {
			return "", domain.Address{}, domain.ErrLocationRequired
		}
		ok, branch, dist, err := geo.IsDeliverable(*cart.Location, s.directory.Branches(), s.cfg.DeliveryRadiusKm)
		if err != nil {
			return "", domain.Address{}, err
		}
		if !ok {
			return "", domain.Address{}, &domain.OutOfRadiusError{
				Branch:     branch.Name,
				DistanceKm: dist,
				RadiusKm:   s.cfg.DeliveryRadiusKm,
			}
		}
		loc := *cart.Location
		return branch.Name, domain.Address{Location: &loc, Text: strings.TrimSpace(text)}, nil
	}

	if strings.TrimSpace(cart.Branch) == "" {
		return "", domain.Address{}, domain.ErrBranchRequired
	}
	return cart.Branch, domain.Address{Text: domain.TakeawayAddress}, nil
}

// finalize schedules the cart reminder, clears the cart and sends the branch
// alert and customer confirmation. Failures are logged, never returned.
func (s *Service) finalize(ctx context.Context, o *domain.Order) {
	reminder := domain.CartReminder{
		UserID:      o.UserID,
		OrderID:     o.ID,
		ScheduledAt: o.OrderDate.Add(s.cfg.ReminderDelay),
	}
	if err := s.reminders.Schedule(ctx, reminder); err != nil {
		s.logger.Printf("schedule reminder for %s: %v", o.ID, err)
	}
	if err := s.carts.Clear(ctx, o.UserID); err != nil {
		s.logger.Printf("clear cart after order %s: %v", o.ID, err)
	}

	var contacts []string
	if b, ok := s.directory.Branch(o.Branch); ok {
		contacts = b.Contacts
	}
	alert := branchAlert(o)
	for _, c := range contacts {
		if err := s.messenger.SendText(ctx, c, alert); err != nil {
			s.logger.Printf("send order alert %s to %s: %v", o.ID, c, err)
		}
	}
	if err := s.messenger.SendText(ctx, o.UserID, customerConfirmation(o, contacts)); err != nil {
		s.logger.Printf("send order confirmation %s: %v", o.ID, err)
	}
}

func resolveDeliveryType(dt domain.DeliveryType, cart *domain.Cart) domain.DeliveryType {
	if dt.Valid() {
		return dt
	}
	if cart.DeliveryType.Valid() {
		return cart.DeliveryType
	}
	return domain.DeliveryTypeTakeaway
}

func applyDiscount(original int64, pct float64) (float64, int64, int64) {
	if pct <= 0 || pct > 100 {
		return 0, 0, original
	}
	amount := domain.PercentOf(original, pct)
	return pct, amount, original - amount
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
