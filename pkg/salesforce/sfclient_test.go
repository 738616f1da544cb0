package salesforce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSFClient creates an sfClient backed by an httptest server.
func newTestSFClient(t *testing.T, handler http.Handler) (Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)

	sf, err := gosf.Init(gosf.Creds{
		AccessToken: "test-token",
		Domain:      ts.URL,
	},
		gosf.WithValidateAuthentication(false),
		gosf.WithRoundTripper(http.DefaultTransport),
	)
	require.NoError(t, err)
	require.NotNil(t, sf)

	return NewClient(sf), ts
}

func TestSFClient_Query(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/query")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"totalSize": 1,
			"done":      true,
			"records": []map[string]any{
				{
					"attributes":    map[string]any{"type": "Account"},
					"Id":            "001xx",
					"Name":          "SecureSpace - 16017 SE Division St",
					"Year_Built__c": 2004,
					"Net_RSF__c":    71250.5,
				},
			},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	var sites []Site
	err := client.Query(context.Background(), "SELECT Id, Name FROM Account", &sites)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "001xx", sites[0].ID)
	assert.Equal(t, "SecureSpace", sites[0].Brand())
	require.NotNil(t, sites[0].NetRSF)
	assert.InDelta(t, 71250.5, *sites[0].NetRSF, 1e-9)
}

func TestSFClient_Query_Error(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"message": "invalid SOQL", "errorCode": "MALFORMED_QUERY"},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	var sites []Site
	err := client.Query(context.Background(), "INVALID SOQL", &sites)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sf: query")
}
