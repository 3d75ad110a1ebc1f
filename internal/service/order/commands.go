package order

import (
	"regexp"
	"strings"

	"chatcommerce/internal/domain"
)

var (
	statusKeywordRe = regexp.MustCompile(`(?i)\b(ready|on\s*the\s*way|delivered|cancel(?:led)?)\b`)
	orderIDRe       = regexp.MustCompile(`(?i)\b([a-z]{3}\d{8}[a-z0-9]{4,})\b`)
	commandPrefixRe = regexp.MustCompile(`(?i)^\s*(ready|on\s*the\s*way|delivered|cancel(?:led)?)\b`)
)

// LooksLikeStatusCommand reports whether text starts with a status keyword.
func LooksLikeStatusCommand(text string) bool {
	return commandPrefixRe.MatchString(text)
}

// ParseStatusCommand extracts the target status and order id from staff text
// such as "ready ORD20250808E8BF12AB34CD".
func ParseStatusCommand(text string) (domain.OrderStatus, string, error) {
	kw := statusKeywordRe.FindStringSubmatch(text)
	id := orderIDRe.FindStringSubmatch(text)
	if kw == nil || id == nil {
		return "", "", domain.ErrInvalidCommandFormat
	}

	var status domain.OrderStatus
	switch keyword := strings.ToLower(strings.Join(strings.Fields(kw[1]), "")); {
	case keyword == "ready":
		status = domain.OrderStatusReady
	case keyword == "ontheway":
		status = domain.OrderStatusOnTheWay
	case keyword == "delivered":
		status = domain.OrderStatusDelivered
	case strings.HasPrefix(keyword, "cancel"):
		status = domain.OrderStatusCancelled
	default:
		return "", "", domain.ErrInvalidCommandFormat
	}
	return status, strings.ToUpper(id[1]), nil
}
