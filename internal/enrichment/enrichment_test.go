package enrichment

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
)

func newTestClientService(t *testing.T) *ClientService {
	t.Helper()
	s := NewClientService(&conf.EnrichmentSettings{
		ClientAPIURL: "http://mdm.test/api",
		APIKey:       "key",
		Timeout:      5 * time.Second,
		CacheTTL:     time.Minute,
	})
	httpmock.ActivateNonDefault(s.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return s
}

func TestGetClientDataCachesResult(t *testing.T) {
	s := newTestClientService(t)

	httpmock.RegisterResponder(http.MethodGet, "http://mdm.test/api/clients/102206",
		httpmock.NewStringResponder(http.StatusOK, `{
			"coreId": "102206", "name": "Petar Petrović", "mbrJmbg": "0101990710019",
			"type": "FL", "residency": "RES", "segment": "PI"
		}`))

	ctx := context.Background()
	data, err := s.GetClientData(ctx, "102206")
	require.NoError(t, err)
	assert.Equal(t, "Petar Petrović", data.Name)
	assert.Equal(t, "PI", data.Segment)

	// Second lookup is served from cache.
	_, err = s.GetClientData(ctx, "102206")
	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestGetActiveAccounts(t *testing.T) {
	s := newTestClientService(t)

	httpmock.RegisterResponder(http.MethodGet, `=~clients/102206/accounts`,
		httpmock.NewStringResponder(http.StatusOK, `{"accounts": ["160-1", "160-2"]}`))

	accounts, err := s.GetActiveAccounts(context.Background(), "102206",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"160-1", "160-2"}, accounts)
}

func TestValidateClientExists(t *testing.T) {
	s := newTestClientService(t)

	httpmock.RegisterResponder(http.MethodHead, "http://mdm.test/api/clients/known",
		httpmock.NewStringResponder(http.StatusOK, ""))
	httpmock.RegisterResponder(http.MethodHead, "http://mdm.test/api/clients/unknown",
		httpmock.NewStringResponder(http.StatusNotFound, ""))

	ctx := context.Background()
	exists, err := s.ValidateClientExists(ctx, "known")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.ValidateClientExists(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, exists)
}

func newTestOfferService(t *testing.T) *OfferService {
	t.Helper()
	s := NewOfferService(&conf.EnrichmentSettings{
		OfferAPIURL: "http://offers.test/api",
		Timeout:     5 * time.Second,
	})
	httpmock.ActivateNonDefault(s.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return s
}

func TestFindOffersByDateSingleMatch(t *testing.T) {
	s := newTestOfferService(t)

	httpmock.RegisterResponder(http.MethodGet, `=~offers\?coreId=102206`,
		httpmock.NewStringResponder(http.StatusOK, `{"offers": [
			{"offerId": "o1", "coreId": "102206", "contractNumber": "40012345", "productType": "TD"}
		]}`))

	match, err := s.FindOffersByDate(context.Background(), "102206",
		time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.False(t, match.Ambiguous())
	offer, ok := match.Single()
	require.True(t, ok)
	assert.Equal(t, "40012345", offer.ContractNumber)
}

func TestFindOffersByDateAmbiguousMatchIsPreserved(t *testing.T) {
	s := newTestOfferService(t)

	httpmock.RegisterResponder(http.MethodGet, `=~offers\?coreId=102206`,
		httpmock.NewStringResponder(http.StatusOK, `{"offers": [
			{"offerId": "o1", "contractNumber": "40012345", "productType": "TD"},
			{"offerId": "o2", "contractNumber": "40067890", "productType": "TD"}
		]}`))

	match, err := s.FindOffersByDate(context.Background(), "102206",
		time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// Both candidates surface to the caller; nothing is auto-picked.
	assert.True(t, match.Ambiguous())
	assert.Len(t, match.Offers, 2)
	_, ok := match.Single()
	assert.False(t, ok)
}
