// Package events consumes offer and vendor change events from Kafka and
// turns them into Buy Box cache invalidations.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Type identifies a change event.
type Type string

// Event types that affect Buy Box rankings.
const (
	OfferCreated         Type = "offer.created"
	OfferUpdated         Type = "offer.updated"
	OfferDeleted         Type = "offer.deleted"
	VendorMetricsUpdated Type = "vendor.metrics.updated"
)

// ErrUnknownType is returned for events this service does not act on.
var ErrUnknownType = errors.New("unknown event type")

// Event is the change notification published by the catalog and reputation
// systems.
type Event struct {
	Type       Type     `json:"type"`
	ProductID  string   `json:"product_id,omitempty"`
	ProductIDs []string `json:"product_ids,omitempty"`
	VendorID   string   `json:"vendor_id,omitempty"`
	OfferID    string   `json:"offer_id,omitempty"`
}

// Products returns the distinct, non-empty product IDs the event names.
func (e *Event) Products() []string {
	out := make([]string, 0, 1+len(e.ProductIDs))
	for _, id := range append([]string{e.ProductID}, e.ProductIDs...) {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Decode parses a message value. Unknown fields are ignored.
func Decode(raw []byte) (*Event, error) {
	var ev Event
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&ev); err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}

	switch ev.Type {
	case OfferCreated, OfferUpdated, OfferDeleted:
		if len(ev.Products()) == 0 {
			return nil, fmt.Errorf("%s event without product_id", ev.Type)
		}
	case VendorMetricsUpdated:
		if strings.TrimSpace(ev.VendorID) == "" && len(ev.Products()) == 0 {
			return nil, fmt.Errorf("%s event without vendor_id or product_ids", ev.Type)
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, ev.Type)
	}
	return &ev, nil
}
