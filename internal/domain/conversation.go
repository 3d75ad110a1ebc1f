package domain

import "time"

// Step is the customer's position in the ordering dialogue.
type Step string

const (
	StepMainMenu               Step = "MAIN_MENU"
	StepViewingCatalog         Step = "VIEWING_CATALOG"
	StepViewingCart            Step = "VIEWING_CART"
	StepSelectingDeliveryType  Step = "SELECTING_DELIVERY_TYPE"
	StepWaitingForLocation     Step = "WAITING_FOR_LOCATION"
	StepSelectingBranch        Step = "SELECTING_BRANCH"
	StepSelectingPaymentMethod Step = "SELECTING_PAYMENT_METHOD"
	StepWaitingForAddress      Step = "WAITING_FOR_ADDRESS"
)

func (s Step) Valid() bool {
	switch s {
	case StepMainMenu, StepViewingCatalog, StepViewingCart, StepSelectingDeliveryType,
		StepWaitingForLocation, StepSelectingBranch, StepSelectingPaymentMethod, StepWaitingForAddress:
		return true
	}
	return false
}

type ConversationState struct {
	Step          Step          `json:"step"`
	Branch        string        `json:"branch,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	UpdatedAt     time.Time     `json:"last_updated"`
}
