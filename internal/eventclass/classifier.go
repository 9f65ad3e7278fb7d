package eventclass

// Provider event names as delivered on the webhook envelope.
const (
	EventPurchaseApproved      = "PURCHASE_APPROVED"
	EventPurchaseComplete      = "PURCHASE_COMPLETE"
	EventPurchaseCanceled      = "PURCHASE_CANCELED"
	EventPurchaseRefunded      = "PURCHASE_REFUNDED"
	EventPurchaseChargeback    = "PURCHASE_CHARGEBACK"
	EventPurchaseExpired       = "PURCHASE_EXPIRED"
	EventPurchaseDelayed       = "PURCHASE_DELAYED"
	EventPurchaseBilletPrinted = "PURCHASE_BILLET_PRINTED"
	EventPurchaseProtest       = "PURCHASE_PROTEST"
	EventCartAbandoned         = "PURCHASE_OUT_OF_SHOPPING_CART"
	EventSubscriptionCanceled  = "SUBSCRIPTION_CANCELLATION"
	EventSwitchPlan            = "SWITCH_PLAN"
	EventChargeDateUpdated     = "UPDATE_SUBSCRIPTION_CHARGE_DATE"
)

// CanonicalType buckets provider events for the canonical event log.
type CanonicalType string

const (
	TypePurchase     CanonicalType = "purchase"
	TypeRefund       CanonicalType = "refund"
	TypeChargeback   CanonicalType = "chargeback"
	TypeSubscription CanonicalType = "subscription"
	TypeAttempt      CanonicalType = "attempt"
	TypeUpgrade      CanonicalType = "upgrade"
)

// Polarity is the ledger direction an event implies.
type Polarity string

const (
	PolarityCredit Polarity = "credit"
	PolarityDebit  Polarity = "debit"
	PolarityNone   Polarity = "none"
)

// Classification is the full decision for one provider event name.
type Classification struct {
	Known     bool
	Status    string
	Type      CanonicalType
	Polarity  Polarity
	Financial bool
}

var statusByEvent = map[string]string{
	EventPurchaseApproved:      "approved",
	EventPurchaseComplete:      "complete",
	EventPurchaseCanceled:      "canceled",
	EventPurchaseRefunded:      "refunded",
	EventPurchaseChargeback:    "chargeback",
	EventPurchaseExpired:       "expired",
	EventPurchaseDelayed:       "delayed",
	EventPurchaseBilletPrinted: "billet_printed",
	EventPurchaseProtest:       "protested",
	EventCartAbandoned:         "abandoned",
	EventSubscriptionCanceled:  "subscription_canceled",
	EventSwitchPlan:            "plan_switched",
	EventChargeDateUpdated:     "charge_date_updated",
}

var typeByEvent = map[string]CanonicalType{
	EventPurchaseApproved:      TypePurchase,
	EventPurchaseComplete:      TypePurchase,
	EventPurchaseCanceled:      TypeRefund,
	EventPurchaseRefunded:      TypeRefund,
	EventPurchaseChargeback:    TypeChargeback,
	EventPurchaseExpired:       TypeAttempt,
	EventPurchaseDelayed:       TypeAttempt,
	EventPurchaseBilletPrinted: TypeAttempt,
	EventPurchaseProtest:       TypeAttempt,
	EventCartAbandoned:         TypeAttempt,
	EventSubscriptionCanceled:  TypeSubscription,
	EventSwitchPlan:            TypeUpgrade,
	EventChargeDateUpdated:     TypeSubscription,
}

var creditEvents = map[string]struct{}{
	EventPurchaseApproved: {},
	EventPurchaseComplete: {},
}

var debitEvents = map[string]struct{}{
	EventPurchaseCanceled:   {},
	EventPurchaseRefunded:   {},
	EventPurchaseChargeback: {},
}

// saleEvents is the allow-list of events with financial/order side
// effects. Anything else is accepted (200) but produces no writes past
// the raw event log, so new provider event types never hard-fail.
var saleEvents = map[string]struct{}{
	EventPurchaseApproved:   {},
	EventPurchaseComplete:   {},
	EventPurchaseCanceled:   {},
	EventPurchaseRefunded:   {},
	EventPurchaseChargeback: {},
}

// Classify resolves the status string, canonical type and ledger
// polarity for a provider event name.
func Classify(event string) Classification {
	status, known := statusByEvent[event]

	polarity := PolarityNone
	if _, ok := creditEvents[event]; ok {
		polarity = PolarityCredit
	} else if _, ok := debitEvents[event]; ok {
		polarity = PolarityDebit
	}

	canonical, ok := typeByEvent[event]
	if !ok {
		canonical = TypeAttempt
	}

	_, financial := saleEvents[event]

	return Classification{
		Known:     known,
		Status:    status,
		Type:      canonical,
		Polarity:  polarity,
		Financial: financial,
	}
}

// IsDebit reports whether an event reverses money already credited.
func IsDebit(event string) bool {
	_, ok := debitEvents[event]
	return ok
}
