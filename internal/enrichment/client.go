// client.go: HTTP implementation of the client master-data lookup with a
// read-through cache
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
	"github.com/patrickmn/go-cache"
)

// ClientService implements ClientLookup over the master-data REST API.
type ClientService struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cache      *cache.Cache // coreID -> ClientData
	logger     *slog.Logger
}

var _ ClientLookup = (*ClientService)(nil)

// NewClientService creates the lookup client from settings.
func NewClientService(settings *conf.EnrichmentSettings) *ClientService {
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cacheTTL := settings.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	return &ClientService{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    settings.ClientAPIURL,
		apiKey:     settings.APIKey,
		cache:      cache.New(cacheTTL, 2*cacheTTL),
		logger:     logging.ForService("client-lookup"),
	}
}

// GetClientData returns the client attributes for coreID, served from cache
// when fresh.
func (s *ClientService) GetClientData(ctx context.Context, coreID string) (ClientData, error) {
	if cached, found := s.cache.Get(coreID); found {
		return cached.(ClientData), nil
	}

	var data ClientData
	endpoint := fmt.Sprintf("%s/clients/%s", s.baseURL, url.PathEscape(coreID))
	if err := s.get(ctx, endpoint, &data); err != nil {
		return ClientData{}, errors.New(err).
			Component("client-lookup").
			Category(errors.CategoryEnrichment).
			Context("operation", "get-client-data").
			Context("core_id", coreID).
			Build()
	}

	s.cache.SetDefault(coreID, data)
	return data, nil
}

// GetActiveAccounts returns the client's active account numbers as of a date.
func (s *ClientService) GetActiveAccounts(ctx context.Context, coreID string, asOf time.Time) ([]string, error) {
	var payload struct {
		Accounts []string `json:"accounts"`
	}
	endpoint := fmt.Sprintf("%s/clients/%s/accounts?asOf=%s",
		s.baseURL, url.PathEscape(coreID), asOf.Format("2006-01-02"))
	if err := s.get(ctx, endpoint, &payload); err != nil {
		return nil, errors.New(err).
			Component("client-lookup").
			Category(errors.CategoryEnrichment).
			Context("operation", "get-active-accounts").
			Context("core_id", coreID).
			Build()
	}
	return payload.Accounts, nil
}

// ValidateClientExists reports whether the master-data service knows coreID.
func (s *ClientService) ValidateClientExists(ctx context.Context, coreID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/clients/%s", s.baseURL, url.PathEscape(coreID))

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return false, err
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, errors.New(err).
			Component("client-lookup").
			Category(errors.CategoryNetwork).
			Context("operation", "validate-client-exists").
			Context("core_id", coreID).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("client existence check returned status %d", resp.StatusCode)
	}
}

func (s *ClientService) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	s.authorize(req)

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

func (s *ClientService) authorize(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("X-Api-Key", s.apiKey)
	}
}
