package kv

import "fmt"

// Keys builds brand-namespaced keys.
type Keys struct {
	Brand string
}

func (k Keys) State(userID string) string {
	return fmt.Sprintf("%s:user:%s:state", k.Brand, userID)
}

func (k Keys) Cart(userID string) string {
	return fmt.Sprintf("%s:user:%s:cart", k.Brand, userID)
}

func (k Keys) PendingOrder(orderID string) string {
	return fmt.Sprintf("%s:pending_order:%s", k.Brand, orderID)
}

// PendingOrders is a sorted set of pending order ids scored by expiry.
func (k Keys) PendingOrders() string {
	return k.Brand + ":pending_orders"
}

func (k Keys) Order(orderID string) string {
	return fmt.Sprintf("%s:order:%s", k.Brand, orderID)
}

func (k Keys) ActiveOrders() string {
	return k.Brand + ":orders:all"
}

func (k Keys) BranchOrders(branch string) string {
	return fmt.Sprintf("%s:orders:branch:%s", k.Brand, branch)
}

func (k Keys) ArchivedOrder(orderID string) string {
	return fmt.Sprintf("%s:orders:archive:%s", k.Brand, orderID)
}

func (k Keys) ArchivedOrders() string {
	return k.Brand + ":orders:archive"
}

// Reminders is a sorted set of cart reminders scored by scheduled time.
func (k Keys) Reminders() string {
	return k.Brand + ":cart:reminders"
}

func (k Keys) Discount() string {
	return k.Brand + ":discount"
}
