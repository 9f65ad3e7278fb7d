package service

import (
	"strings"

	"github.com/trackpilot/revsync/internal/order/domain"
)

// ResolveInput carries the payload fields the resolver inspects, in
// precedence order. The orchestrator maps the provider envelope onto it.
type ResolveInput struct {
	Transaction string

	IsOrderBump   bool
	BumpParent    *string // order_bump.parent_purchase_transaction
	OfferName     *string
	GenericParent *string // purchase-level parent transaction field
	OrderRef      *string // order-level identifier, if the payload has one
	OfferCode     *string
	ProductCode   *string
}

// Resolution is the canonical order id for an event plus the item type
// implied by which rule matched.
type Resolution struct {
	ProviderOrderID string
	ItemType        domain.ItemType
}

// Resolve determines the canonical order identifier for an inbound
// event, grouping bundled line items under one parent order. First
// match wins. Returns ErrUnresolvable only when no identifying field
// exists at all; callers must then skip the accumulator (non-fatal).
func Resolve(in ResolveInput) (Resolution, error) {
	txn := strings.TrimSpace(in.Transaction)

	// 1. Order bump with a recorded parent transaction.
	if in.IsOrderBump {
		if parent := trimmed(in.BumpParent); parent != "" {
			return Resolution{ProviderOrderID: parent, ItemType: domain.ItemTypeBump}, nil
		}
	}

	// 2. Upsell/downsell marker in the offer name plus a parent id.
	if kind, ok := upsellKind(in.OfferName); ok {
		if parent := firstNonEmpty(trimmed(in.BumpParent), trimmed(in.GenericParent)); parent != "" {
			return Resolution{ProviderOrderID: parent, ItemType: kind}, nil
		}
	}

	// 3. Any generic parent-transaction field.
	if parent := trimmed(in.GenericParent); parent != "" {
		return Resolution{ProviderOrderID: parent, ItemType: domain.ItemTypeMain}, nil
	}

	// 4. This event's own transaction: it is the main/root product.
	if txn != "" {
		return Resolution{ProviderOrderID: txn, ItemType: domain.ItemTypeMain}, nil
	}

	// 5. Order-level identifier when no transaction id exists.
	if ref := trimmed(in.OrderRef); ref != "" {
		return Resolution{ProviderOrderID: ref, ItemType: domain.ItemTypeMain}, nil
	}

	// 6. Product/offer code as a last resort.
	if code := firstNonEmpty(trimmed(in.OfferCode), trimmed(in.ProductCode)); code != "" {
		return Resolution{ProviderOrderID: code, ItemType: domain.ItemTypeMain}, nil
	}

	return Resolution{}, domain.ErrUnresolvable
}

func upsellKind(offerName *string) (domain.ItemType, bool) {
	if offerName == nil {
		return "", false
	}
	name := strings.ToLower(*offerName)
	name = strings.ReplaceAll(name, "-", "")
	name = strings.ReplaceAll(name, " ", "")
	switch {
	case strings.Contains(name, "downsell"):
		return domain.ItemTypeDownsell, true
	case strings.Contains(name, "upsell"):
		return domain.ItemTypeUpsell, true
	default:
		return "", false
	}
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
