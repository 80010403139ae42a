package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fairgrounds/deltashare/pkg/errors"
	"github.com/fairgrounds/deltashare/server/catalog"
	"github.com/fairgrounds/deltashare/server/config"
	"github.com/fairgrounds/deltashare/server/query"
	"github.com/fairgrounds/deltashare/server/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fullToken    = "test-full-token-0001"
	partnerToken = "test-partner-token-1"
)

const testCatalog = `
shares:
  - name: fairgrounds_share
    schemas:
      - name: default
        tables:
          - name: customers
            location: s3://delta-sharing-data/data/customers
            schema_string: '{"type":"struct","fields":[{"name":"id","type":"long"}]}'
            partition_columns: [state]
            current_version: 1
            history:
              - version: 1
                timestamp: "2026-01-01T00:00:00Z"
                files:
                  - key: data/customers/state=CA/part-0001.parquet
                    size: 1024
                    partition_values: {state: CA}
                    stats: '{"numRecords":10}'
                  - key: data/customers/state=NY/part-0002.parquet
                    size: 2048
                    partition_values: {state: NY}
          - name: orders
            location: s3://delta-sharing-data/data/orders
            current_version: 0
      - name: analytics
        tables:
          - name: events
            location: s3://delta-sharing-data/data/events
            current_version: 0
  - name: partner_share
    schemas:
      - name: default
        tables: []
`

// stubStore signs and lists without a real backend
type stubStore struct {
	objects    []storage.ObjectInfo
	presignErr error
}

func (s *stubStore) List(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	return s.objects, nil
}

func (s *stubStore) Stat(ctx context.Context, bucket, key string) (*storage.ObjectInfo, error) {
	return nil, errors.New(storage.ErrNotFound, "not implemented")
}

func (s *stubStore) Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if s.presignErr != nil {
		return "", s.presignErr
	}
	return "https://files.test/" + bucket + "/" + key + "?sig=stub", nil
}

func newTestServer(t *testing.T, store storage.ObjectStore) *httptest.Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0644))

	cfg := config.LoadDefaultConfig()
	cfg.Auth.Tokens = []config.TokenConfig{
		{Token: fullToken},
		{Token: partnerToken, Shares: []string{"partner_share"}},
	}
	cfg.Catalog.Path = path

	catalogStore, err := catalog.NewStore(path, zerolog.Nop())
	require.NoError(t, err)

	srv, err := NewServer(
		cfg,
		catalogStore,
		query.NewPlanner(store, zerolog.Nop()),
		NewIssuer(store, time.Hour, 2, zerolog.Nop()),
		NewStaticTokenProvider(cfg.Auth.Tokens),
		zerolog.Nop(),
	)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, token, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeActions(t *testing.T, body []byte) []action {
	t.Helper()
	var actions []action
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		var a action
		require.NoError(t, json.Unmarshal([]byte(line), &a))
		actions = append(actions, a)
	}
	return actions
}

func TestHealthRequiresNoToken(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	resp, body := doRequest(t, ts, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	paths := []string{
		"/shares",
		"/shares/fairgrounds_share/schemas",
		"/shares/fairgrounds_share/all-tables",
		"/shares/fairgrounds_share/schemas/default/tables",
		"/shares/fairgrounds_share/schemas/default/tables/customers/metadata",
	}

	for _, path := range paths {
		resp, body := doRequest(t, ts, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)

		var eb errorBody
		require.NoError(t, json.Unmarshal(body, &eb), path)
		assert.Equal(t, codeUnauthenticated, eb.ErrorCode, path)

		resp, _ = doRequest(t, ts, http.MethodGet, path, "wrong-token", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestListShares(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	resp, body := doRequest(t, ts, http.MethodGet, "/shares", fullToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page listPage[shareItem]
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, "fairgrounds_share", page.Items[0].Name)
	assert.Equal(t, "partner_share", page.Items[1].Name)
	assert.Empty(t, page.NextPageToken)
}

func TestListSharesScoped(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	_, body := doRequest(t, ts, http.MethodGet, "/shares", partnerToken, "")
	var page listPage[shareItem]
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "partner_share", page.Items[0].Name)
}

func TestScopedTokenCannotProbeOtherShares(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	// Out-of-scope responses match unknown-token responses, for both
	// shares that exist and shares that do not
	for _, share := range []string{"fairgrounds_share", "no_such_share"} {
		resp, body := doRequest(t, ts, http.MethodGet, "/shares/"+share+"/schemas", partnerToken, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var eb errorBody
		require.NoError(t, json.Unmarshal(body, &eb))
		assert.Equal(t, codeUnauthenticated, eb.ErrorCode)
		assert.Equal(t, "invalid bearer token", eb.Message)
	}
}

func TestListSchemasAndTables(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	_, body := doRequest(t, ts, http.MethodGet, "/shares/fairgrounds_share/schemas", fullToken, "")
	var schemas listPage[schemaItem]
	require.NoError(t, json.Unmarshal(body, &schemas))
	require.Len(t, schemas.Items, 2)
	assert.Equal(t, schemaItem{Name: "default", Share: "fairgrounds_share"}, schemas.Items[0])

	_, body = doRequest(t, ts, http.MethodGet, "/shares/fairgrounds_share/schemas/default/tables", fullToken, "")
	var tables listPage[tableItem]
	require.NoError(t, json.Unmarshal(body, &tables))
	require.Len(t, tables.Items, 2)
	assert.Equal(t, "customers", tables.Items[0].Name)
	assert.Equal(t, "default", tables.Items[0].Schema)
	assert.Equal(t, "fairgrounds_share", tables.Items[0].Share)
	assert.NotEmpty(t, tables.Items[0].ID)
}

func TestListAllTablesFlattensSchemas(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	_, body := doRequest(t, ts, http.MethodGet, "/shares/fairgrounds_share/all-tables", fullToken, "")
	var tables listPage[tableItem]
	require.NoError(t, json.Unmarshal(body, &tables))
	require.Len(t, tables.Items, 3)

	names := []string{tables.Items[0].Name, tables.Items[1].Name, tables.Items[2].Name}
	assert.Equal(t, []string{"customers", "orders", "events"}, names)
}

func TestUnknownResourcesAre404(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	paths := []string{
		"/shares/no_such_share/schemas",
		"/shares/fairgrounds_share/schemas/no_such_schema/tables",
		"/shares/fairgrounds_share/schemas/default/tables/orders2/metadata",
	}
	for _, path := range paths {
		resp, body := doRequest(t, ts, http.MethodGet, path, fullToken, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)

		var eb errorBody
		require.NoError(t, json.Unmarshal(body, &eb), path)
		assert.Equal(t, codeNotFound, eb.ErrorCode, path)
	}
}

func TestTableMetadata(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	resp, body := doRequest(t, ts, http.MethodGet, "/shares/fairgrounds_share/schemas/default/tables/customers/metadata", fullToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get(headerTableVersion))
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/x-ndjson")

	actions := decodeActions(t, body)
	require.Len(t, actions, 2)

	require.NotNil(t, actions[0].Protocol)
	assert.Equal(t, 1, actions[0].Protocol.MinReaderVersion)

	meta := actions[1].MetaData
	require.NotNil(t, meta)
	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, "parquet", meta.Format.Provider)
	assert.Equal(t, []string{"state"}, meta.PartitionColumns)
	assert.Equal(t, int64(1), meta.Version)
	assert.Equal(t, 2, meta.NumFiles)
	assert.Equal(t, int64(3072), meta.Size)
}

func TestTableQuery(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	resp, body := doRequest(t, ts, http.MethodPost, "/shares/fairgrounds_share/schemas/default/tables/customers/query", fullToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get(headerTableVersion))

	actions := decodeActions(t, body)
	require.Len(t, actions, 4)
	require.NotNil(t, actions[0].Protocol)
	require.NotNil(t, actions[1].MetaData)

	first := actions[2].File
	require.NotNil(t, first)
	assert.Contains(t, first.URL, "https://files.test/delta-sharing-data/data/customers/state=CA/")
	assert.Equal(t, map[string]string{"state": "CA"}, first.PartitionValues)
	assert.Equal(t, int64(1024), first.Size)
	assert.Equal(t, `{"numRecords":10}`, first.Stats)
	assert.NotEmpty(t, first.ID)
	assert.Greater(t, first.ExpirationTimestamp, time.Now().UnixMilli())

	second := actions[3].File
	require.NotNil(t, second)
	assert.Equal(t, map[string]string{"state": "NY"}, second.PartitionValues)
}

func TestTableQueryPinnedVersionCarriesVersionOnFiles(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	resp, body := doRequest(t, ts, http.MethodPost, "/shares/fairgrounds_share/schemas/default/tables/customers/query", fullToken, `{"version": 1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	actions := decodeActions(t, body)
	require.Len(t, actions, 4)
	for _, a := range actions[2:] {
		require.NotNil(t, a.File)
		assert.Equal(t, int64(1), a.File.Version)
		commitTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, commitTime.UnixMilli(), a.File.Timestamp)
	}

	// Latest-version reads leave the per-file version unset
	_, body = doRequest(t, ts, http.MethodPost, "/shares/fairgrounds_share/schemas/default/tables/customers/query", fullToken, "")
	actions = decodeActions(t, body)
	assert.Zero(t, actions[2].File.Version)
}

func TestTableQueryWithPredicateHints(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	reqBody := `{"predicateHints": ["state = 'CA'"]}`
	resp, body := doRequest(t, ts, http.MethodPost, "/shares/fairgrounds_share/schemas/default/tables/customers/query", fullToken, reqBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	actions := decodeActions(t, body)
	require.Len(t, actions, 3, "the NY file is pruned")
	assert.Equal(t, "CA", actions[2].File.PartitionValues["state"])
}

func TestTableQueryLimitHint(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	resp, body := doRequest(t, ts, http.MethodPost, "/shares/fairgrounds_share/schemas/default/tables/customers/query", fullToken, `{"limitHint": 1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	actions := decodeActions(t, body)
	assert.Len(t, actions, 3)
}

func TestTableQueryVersionTimestampConflict(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	reqBody := `{"version": 1, "timestamp": "2026-01-01T00:00:00Z"}`
	resp, body := doRequest(t, ts, http.MethodPost, "/shares/fairgrounds_share/schemas/default/tables/customers/query", fullToken, reqBody)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var eb errorBody
	require.NoError(t, json.Unmarshal(body, &eb))
	assert.Equal(t, codeInvalidParameter, eb.ErrorCode)
}

func TestTableQueryRejectsUnknownFields(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	resp, body := doRequest(t, ts, http.MethodPost, "/shares/fairgrounds_share/schemas/default/tables/customers/query", fullToken, `{"bogus": true}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var eb errorBody
	require.NoError(t, json.Unmarshal(body, &eb))
	assert.Equal(t, codeInvalidParameter, eb.ErrorCode)
}

func TestTableQueryPresignFailureFailsWholeSet(t *testing.T) {
	store := &stubStore{presignErr: errors.New(storage.ErrUnavailable, "backend down")}
	ts := newTestServer(t, store)

	resp, body := doRequest(t, ts, http.MethodPost, "/shares/fairgrounds_share/schemas/default/tables/customers/query", fullToken, "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var eb errorBody
	require.NoError(t, json.Unmarshal(body, &eb))
	assert.Equal(t, codeStorageUnavailable, eb.ErrorCode)
	assert.NotContains(t, string(body), "files.test", "no partial URLs leak into error responses")
}

func TestPaginationWalksTheFullListing(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	var names []string
	next := ""
	for {
		path := "/shares/fairgrounds_share/all-tables?maxResults=1"
		if next != "" {
			path += "&pageToken=" + next
		}
		resp, body := doRequest(t, ts, http.MethodGet, path, fullToken, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var page listPage[tableItem]
		require.NoError(t, json.Unmarshal(body, &page))
		require.Len(t, page.Items, 1)
		names = append(names, page.Items[0].Name)

		if page.NextPageToken == "" {
			break
		}
		next = page.NextPageToken
	}

	assert.Equal(t, []string{"customers", "orders", "events"}, names)
}

func TestPageTokenBoundToListing(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	_, body := doRequest(t, ts, http.MethodGet, "/shares/fairgrounds_share/all-tables?maxResults=1", fullToken, "")
	var page listPage[tableItem]
	require.NoError(t, json.Unmarshal(body, &page))
	require.NotEmpty(t, page.NextPageToken)

	// A token minted for one listing cannot resume another
	resp, errBody := doRequest(t, ts, http.MethodGet, "/shares/fairgrounds_share/schemas?pageToken="+page.NextPageToken, fullToken, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var eb errorBody
	require.NoError(t, json.Unmarshal(errBody, &eb))
	assert.Equal(t, codeInvalidParameter, eb.ErrorCode)
}

func TestInvalidMaxResults(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	for _, raw := range []string{"0", "-3", "abc"} {
		resp, _ := doRequest(t, ts, http.MethodGet, "/shares?maxResults="+raw, fullToken, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, raw)
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	resp, _ := doRequest(t, ts, http.MethodGet, "/health", "", "")
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))
}
