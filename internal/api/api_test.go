package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycelian/contacts-service/internal/api"
	"github.com/mycelian/contacts-service/internal/model"
	"github.com/mycelian/contacts-service/internal/remote"
	"github.com/mycelian/contacts-service/internal/remote/remotetest"
	"github.com/mycelian/contacts-service/internal/schema"
	"github.com/mycelian/contacts-service/internal/synccache"
)

type testAPI struct {
	remote  *remotetest.Server
	server  *httptest.Server
	cache   *synccache.Cache
	healthy atomic.Bool
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	srv := remotetest.New(t)
	client, err := remote.New(remote.Config{
		BaseURL:        srv.URL,
		APIKey:         remotetest.Token,
		DatabaseID:     remotetest.DatabaseID,
		APIVersion:     remotetest.Version,
		Timeout:        5 * time.Second,
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
	}, schema.Default())
	require.NoError(t, err)

	ta := &testAPI{remote: srv, cache: synccache.New(client)}
	ta.healthy.Store(true)
	router := api.NewRouter(api.Deps{
		Store:   client,
		Cache:   ta.cache,
		Healthy: ta.healthy.Load,
		Down:    func() []string { return []string{"remote"} },
		Log:     zerolog.Nop(),
	})
	ta.server = httptest.NewServer(router)
	t.Cleanup(ta.server.Close)
	return ta
}

func (ta *testAPI) seed(name, email, status, company string) string {
	return ta.remote.AddPage(fmt.Sprintf(`{
		"Contact": {"type":"title","title":[{"plain_text":%q}]},
		"Email": {"type":"rich_text","rich_text":[{"plain_text":%q}]},
		"Status": {"type":"status","status":{"name":%q}},
		"Company": {"type":"rich_text","rich_text":[{"plain_text":%q}]}
	}`, name, email, status, company))
}

func (ta *testAPI) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ta.server.URL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (ta *testAPI) list(t *testing.T, query string) []model.Contact {
	t.Helper()
	resp, raw := ta.do(t, http.MethodGet, "/api/contacts"+query, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var out []model.Contact
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func names(cs []model.Contact) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func TestListContacts(t *testing.T) {
	ta := newTestAPI(t)
	ta.seed("Grace Hopper", "grace@navy.mil", "Contacted", "US Navy")
	ta.seed("Ada Lovelace", "ada@example.com", "Queued", "Analytical Engines")
	ta.seed("alan turing", "alan@example.com", "Queued", "Bletchley")

	all := ta.list(t, "")
	assert.Equal(t, []string{"Ada Lovelace", "alan turing", "Grace Hopper"}, names(all))
	assert.Equal(t, 1, ta.remote.Calls(remotetest.RouteQuery))

	queued := ta.list(t, "?status=queued&sort_order=desc")
	assert.Equal(t, []string{"alan turing", "Ada Lovelace"}, names(queued))

	assert.Equal(t, []string{"Grace Hopper"}, names(ta.list(t, "?search=NAVY")))
	assert.Empty(t, ta.list(t, "?search=nobody"))
	assert.Equal(t, 1, ta.remote.Calls(remotetest.RouteQuery), "fresh cache serves repeated reads")

	ta.list(t, "?refresh=true")
	assert.Equal(t, 2, ta.remote.Calls(remotetest.RouteQuery))
}

func TestListContactsEmptyIsArray(t *testing.T) {
	ta := newTestAPI(t)
	resp, raw := ta.do(t, http.MethodGet, "/api/contacts", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestListContactsRejectsBadQuery(t *testing.T) {
	ta := newTestAPI(t)
	for _, q := range []string{"?sort_by=shoe_size", "?sort_order=sideways", "?refresh=maybe"} {
		resp, _ := ta.do(t, http.MethodGet, "/api/contacts"+q, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
	assert.Zero(t, ta.remote.TotalCalls())
}

func TestListContactsRemoteFailures(t *testing.T) {
	ta := newTestAPI(t)
	ta.remote.FailNext(remotetest.RouteQuery, 500, 502, 503)
	resp, raw := ta.do(t, http.MethodGet, "/api/contacts", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, string(raw))

	ta.remote.FailNext(remotetest.RouteQuery, http.StatusForbidden)
	resp, _ = ta.do(t, http.MethodGet, "/api/contacts", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	ta.seed("Ada Lovelace", "ada@example.com", "Queued", "")
	require.Len(t, ta.list(t, ""), 1)

	ta.remote.FailNext(remotetest.RouteQuery, 500, 500, 500)
	got := ta.list(t, "?refresh=true")
	assert.Len(t, got, 1, "a failed refresh serves the previous snapshot")
}

func TestGetContact(t *testing.T) {
	ta := newTestAPI(t)
	id := ta.seed("Ada Lovelace", "ada@example.com", "Queued", "")

	resp, raw := ta.do(t, http.MethodGet, "/api/contacts/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var c model.Contact
	require.NoError(t, json.Unmarshal(raw, &c))
	assert.Equal(t, id, c.ID)
	assert.Equal(t, "Ada", c.FirstName)
	assert.Equal(t, 1, ta.remote.Calls(remotetest.RouteGet), "cold cache falls through to the store")

	ta.list(t, "")
	ta.do(t, http.MethodGet, "/api/contacts/"+id, "")
	assert.Equal(t, 1, ta.remote.Calls(remotetest.RouteGet), "cached records need no remote read")

	resp, _ = ta.do(t, http.MethodGet, "/api/contacts/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateContact(t *testing.T) {
	ta := newTestAPI(t)
	ta.list(t, "")

	resp, raw := ta.do(t, http.MethodPost, "/api/contacts",
		`{"name":"Katherine Johnson","email":"kj@nasa.gov","relationship_type":"advisor","group":"NASA"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var created model.Contact
	require.NoError(t, json.Unmarshal(raw, &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, model.StatusQueued, created.Status)
	assert.Equal(t, "advisor", created.RelationshipType)
	assert.NotEmpty(t, created.CreatedDate)

	got := ta.list(t, "")
	require.Len(t, got, 1, "the new record is visible before the next refresh")
	assert.Equal(t, created.ID, got[0].ID)
	assert.Equal(t, 1, ta.remote.Calls(remotetest.RouteQuery))

	_, pending := ta.cache.LocalEditAt(created.ID)
	assert.True(t, pending)
}

func TestCreateContactValidation(t *testing.T) {
	ta := newTestAPI(t)
	for _, body := range []string{
		`{"name":"","email":"a@b.co"}`,
		`{"name":"No Contact Info"}`,
		`{"name":"Bad","email":"nope"}`,
		`{"name":"Bad","phone":"1","status":"Busy"}`,
		`{not json`,
	} {
		resp, raw := ta.do(t, http.MethodPost, "/api/contacts", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		var er struct {
			Status int    `json:"status"`
			Detail string `json:"detail"`
		}
		require.NoError(t, json.Unmarshal(raw, &er))
		assert.Equal(t, http.StatusBadRequest, er.Status)
		assert.NotEmpty(t, er.Detail)
	}
	assert.Zero(t, ta.remote.TotalCalls(), "invalid input never reaches the store")
}

func TestUpdateContact(t *testing.T) {
	ta := newTestAPI(t)
	id := ta.seed("Ada Lovelace", "ada@example.com", "Queued", "")
	ta.list(t, "")

	resp, raw := ta.do(t, http.MethodPatch, "/api/contacts/"+id, `{"status":"contacted","call_count":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var updated model.Contact
	require.NoError(t, json.Unmarshal(raw, &updated))
	assert.Equal(t, model.StatusContacted, updated.Status)
	assert.Equal(t, 2, updated.CallCount)
	assert.Equal(t, "ada@example.com", updated.Email)

	got := ta.list(t, "?status=contacted")
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)

	page, ok := ta.remote.Page(id)
	require.True(t, ok)
	status, _ := page.Properties.Get("Status")
	require.NotNil(t, status.Status)
	assert.Equal(t, "Contacted", status.Status.Name)

	resp, _ = ta.do(t, http.MethodPatch, "/api/contacts/"+id, `{"status":"Contacted!"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = ta.do(t, http.MethodPatch, "/api/contacts/"+id, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = ta.do(t, http.MethodPatch, "/api/contacts/missing", `{"notes":"hi"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteContact(t *testing.T) {
	ta := newTestAPI(t)
	keep := ta.seed("Ada Lovelace", "ada@example.com", "Queued", "")
	gone := ta.seed("Charles Babbage", "cb@example.com", "Queued", "")
	require.Len(t, ta.list(t, ""), 2)

	resp, raw := ta.do(t, http.MethodDelete, "/api/contacts/"+gone, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode, string(raw))
	assert.Empty(t, raw)

	got := ta.list(t, "")
	require.Len(t, got, 1)
	assert.Equal(t, keep, got[0].ID)

	page, _ := ta.remote.Page(gone)
	assert.True(t, page.Archived)
	assert.Len(t, ta.list(t, "?refresh=true"), 1)

	resp, _ = ta.do(t, http.MethodDelete, "/api/contacts/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRemoteEditWinsAfterRefresh(t *testing.T) {
	ta := newTestAPI(t)
	id := ta.seed("Ada Lovelace", "ada@example.com", "Queued", "")
	ta.list(t, "")

	resp, _ := ta.do(t, http.MethodPatch, "/api/contacts/"+id, `{"notes":"local note"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ta.remote.SetClock(func() time.Time { return time.Now().Add(time.Hour) })
	ta.remote.Edit(id, `{"Notes":{"type":"rich_text","rich_text":[{"plain_text":"edited in the store"}]}}`)

	got := ta.list(t, "?refresh=true")
	require.Len(t, got, 1)
	assert.Equal(t, "edited in the store", got[0].Notes)
}

func TestHealth(t *testing.T) {
	ta := newTestAPI(t)

	resp, raw := ta.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["remote_connected"])
	assert.Equal(t, "empty", body["cache_state"])
	assert.NotContains(t, body, "cache_fetched_at")

	ta.seed("Ada Lovelace", "ada@example.com", "Queued", "")
	ta.list(t, "")
	body = map[string]any{}
	_, raw = ta.do(t, http.MethodGet, "/api/health", "")
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "fresh", body["cache_state"])
	assert.EqualValues(t, 1, body["cache_records"])
	assert.NotEmpty(t, body["cache_fetched_at"])

	ta.healthy.Store(false)
	resp, raw = ta.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, false, body["remote_connected"])
	assert.Equal(t, []any{"remote"}, body["down"])
}

func TestRequestIDAndMetrics(t *testing.T) {
	ta := newTestAPI(t)

	resp, _ := ta.do(t, http.MethodGet, "/api/health", "")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, err := http.NewRequest(http.MethodGet, ta.server.URL+"/api/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-123")
	r2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = r2.Body.Close()
	assert.Equal(t, "req-123", r2.Header.Get("X-Request-ID"))

	ta.list(t, "")
	resp, raw := ta.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, bytes.Contains(raw, []byte("contacts_remote_requests_total")))
	assert.True(t, bytes.Contains(raw, []byte("contacts_cache_refreshes_total")))
}
