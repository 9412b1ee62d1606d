// Package enrichment provides the external lookup services used to enrich
// staged folders: client master data and deposit offer data, both keyed by
// the bank-assigned CoreId.
package enrichment

import (
	"context"
	"time"
)

// ClientData holds the client attributes returned by the master-data service.
type ClientData struct {
	CoreID    string `json:"coreId"`
	Name      string `json:"name"`
	MbrJmbg   string `json:"mbrJmbg"`
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	Residency string `json:"residency"`
	Segment   string `json:"segment"`
}

// Offer is one deposit offer record.
type Offer struct {
	OfferID        string    `json:"offerId"`
	CoreID         string    `json:"coreId"`
	ContractNumber string    `json:"contractNumber"`
	ProductType    string    `json:"productType"`
	BookedAt       time.Time `json:"bookedAt"`
}

// OfferMatch is the result of a by-date offer search. More than one candidate
// is an ambiguity the caller must surface to an operator; it is never
// auto-resolved here.
type OfferMatch struct {
	Offers []Offer
}

// Ambiguous reports whether the match needs manual resolution.
func (m OfferMatch) Ambiguous() bool {
	return len(m.Offers) > 1
}

// Single returns the sole matched offer, if exactly one matched.
func (m OfferMatch) Single() (Offer, bool) {
	if len(m.Offers) == 1 {
		return m.Offers[0], true
	}
	return Offer{}, false
}

// ClientLookup is the client master-data service.
type ClientLookup interface {
	GetClientData(ctx context.Context, coreID string) (ClientData, error)
	GetActiveAccounts(ctx context.Context, coreID string, asOf time.Time) ([]string, error)
	ValidateClientExists(ctx context.Context, coreID string) (bool, error)
}

// OfferLookup is the deposit offer service.
type OfferLookup interface {
	GetBookedOffers(ctx context.Context, coreID string) ([]Offer, error)
	GetOfferDetails(ctx context.Context, offerID string) (Offer, error)
	FindOffersByDate(ctx context.Context, coreID string, date time.Time) (OfferMatch, error)
}
