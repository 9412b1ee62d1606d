// offers.go: HTTP implementation of the deposit offer lookup
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/errors"
	"github.com/dkovacevic/dossier-migrate/internal/logging"
)

// OfferService implements OfferLookup over the deposit offer REST API.
type OfferService struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

var _ OfferLookup = (*OfferService)(nil)

// NewOfferService creates the offer lookup client from settings.
func NewOfferService(settings *conf.EnrichmentSettings) *OfferService {
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OfferService{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    settings.OfferAPIURL,
		apiKey:     settings.APIKey,
		logger:     logging.ForService("offer-lookup"),
	}
}

// GetBookedOffers returns all booked offers for a client.
func (s *OfferService) GetBookedOffers(ctx context.Context, coreID string) ([]Offer, error) {
	var payload struct {
		Offers []Offer `json:"offers"`
	}
	endpoint := fmt.Sprintf("%s/offers?coreId=%s&status=booked", s.baseURL, url.QueryEscape(coreID))
	if err := s.get(ctx, endpoint, &payload); err != nil {
		return nil, errors.New(err).
			Component("offer-lookup").
			Category(errors.CategoryEnrichment).
			Context("operation", "get-booked-offers").
			Context("core_id", coreID).
			Build()
	}
	return payload.Offers, nil
}

// GetOfferDetails returns one offer by id.
func (s *OfferService) GetOfferDetails(ctx context.Context, offerID string) (Offer, error) {
	var offer Offer
	endpoint := fmt.Sprintf("%s/offers/%s", s.baseURL, url.PathEscape(offerID))
	if err := s.get(ctx, endpoint, &offer); err != nil {
		return Offer{}, errors.New(err).
			Component("offer-lookup").
			Category(errors.CategoryEnrichment).
			Context("operation", "get-offer-details").
			Context("offer_id", offerID).
			Build()
	}
	return offer, nil
}

// FindOffersByDate returns the offers booked for a client on a given date.
// More than one hit is returned as-is; resolving the ambiguity is the
// caller's responsibility and is logged as a warning here.
func (s *OfferService) FindOffersByDate(ctx context.Context, coreID string, date time.Time) (OfferMatch, error) {
	var payload struct {
		Offers []Offer `json:"offers"`
	}
	endpoint := fmt.Sprintf("%s/offers?coreId=%s&bookedOn=%s",
		s.baseURL, url.QueryEscape(coreID), date.Format("2006-01-02"))
	if err := s.get(ctx, endpoint, &payload); err != nil {
		return OfferMatch{}, errors.New(err).
			Component("offer-lookup").
			Category(errors.CategoryEnrichment).
			Context("operation", "find-offers-by-date").
			Context("core_id", coreID).
			Build()
	}

	match := OfferMatch{Offers: payload.Offers}
	if match.Ambiguous() {
		s.logger.Warn("ambiguous offer match, manual resolution required",
			"core_id", coreID,
			"date", date.Format("2006-01-02"),
			"candidates", len(match.Offers))
	}
	return match, nil
}

func (s *OfferService) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-Api-Key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s returned status %d", endpoint, resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}
