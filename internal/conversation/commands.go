package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"chatcommerce/internal/domain"
	ordersvc "chatcommerce/internal/service/order"
)

var (
	setDiscountRe   = regexp.MustCompile(`(?i)^\s*set\s+discount\s+(-?\d+(?:\.\d+)?)\s*%?\s*$`)
	clearDiscountRe = regexp.MustCompile(`(?i)^\s*clear\s+discount\s*$`)
)

var greetings = map[string]bool{"hi": true, "hello": true, "hey": true, "hii": true, "namaste": true}

func isGreeting(text string) bool {
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if greetings[w] {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (r *Router) isAdmin(sender string) bool {
	return contains(r.cfg.AdminNumbers, sender)
}

// isStaff accepts configured staff numbers and branch contacts. When neither
// is configured any sender may issue status commands.
func (r *Router) isStaff(sender string) bool {
	if contains(r.cfg.StaffNumbers, sender) || r.directory.IsBranchContact(sender) {
		return true
	}
	if len(r.cfg.StaffNumbers) > 0 {
		return false
	}
	for _, b := range r.directory.Branches() {
		if len(b.Contacts) > 0 {
			return false
		}
	}
	return true
}

// handleAdminCommand applies "set discount N" and "clear discount". It
// reports whether text was an admin command.
func (r *Router) handleAdminCommand(ctx context.Context, from, text string) bool {
	if m := setDiscountRe.FindStringSubmatch(text); m != nil {
		pct, _ := strconv.ParseFloat(m[1], 64)
		switch err := r.discounts.Set(ctx, pct); {
		case errors.Is(err, domain.ErrInvalidDiscount):
			r.sendText(ctx, from, "❌ Discount must be between 0 and 100.")
		case err != nil:
			r.sendText(ctx, from, genericFailureText)
		default:
			r.sendText(ctx, from, fmt.Sprintf("✅ Discount set to %g%%.", pct))
		}
		return true
	}
	if clearDiscountRe.MatchString(text) {
		if err := r.discounts.Clear(ctx); err != nil {
			r.sendText(ctx, from, genericFailureText)
		} else {
			r.sendText(ctx, from, "✅ Discount cleared.")
		}
		return true
	}
	return false
}

func (r *Router) handleStatusCommand(ctx context.Context, from, text string) {
	o, err := r.orders.UpdateOrderStatusFromCommand(ctx, text)
	var illegal *domain.IllegalTransitionError
	switch {
	case err == nil:
		r.sendText(ctx, from, ordersvc.StatusUpdatedReply(o))
	case errors.Is(err, domain.ErrInvalidCommandFormat):
		r.sendText(ctx, from, ordersvc.InvalidCommandReply)
	case errors.Is(err, domain.ErrOrderNotFound):
		_, id, _ := ordersvc.ParseStatusCommand(text)
		r.sendText(ctx, from, fmt.Sprintf("❌ Order #%s not found.", id))
	case errors.As(err, &illegal):
		r.sendText(ctx, from, fmt.Sprintf("❌ Order cannot move from *%s* to *%s*.", illegal.From, illegal.To))
	default:
		r.logger.Printf("status command from %s: %v", from, err)
		r.sendText(ctx, from, genericFailureText)
	}
}
