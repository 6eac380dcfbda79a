// Package remotetest provides an in-memory stand-in for the hosted contacts
// database HTTP API.
package remotetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mycelian/contacts-service/internal/schema"
)

const (
	Token      = "secret-test-token"
	DatabaseID = "db-test"
	Version    = "2022-06-28"

	RouteQuery  = "query"
	RouteSchema = "schema"
	RouteGet    = "get"
	RouteCreate = "create"
	RouteUpdate = "update"
)

// Page is a stored record.
type Page struct {
	ID             string      `json:"id"`
	Object         string      `json:"object"`
	CreatedTime    string      `json:"created_time"`
	LastEditedTime string      `json:"last_edited_time"`
	Archived       bool        `json:"archived"`
	Properties     *schema.Bag `json:"properties"`
}

// Server is a fake store backed by an httptest.Server.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	order    []string
	pages    map[string]*Page
	extra    []json.RawMessage
	schema   *schema.Bag
	calls    map[string]int
	failures map[string][]int
	now      func() time.Time
}

// New starts a fake store that is closed when t finishes.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		pages:    map[string]*Page{},
		calls:    map[string]int{},
		failures: map[string][]int{},
		schema:   schema.NewBag(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	r := mux.NewRouter()
	r.Use(s.auth)
	r.HandleFunc("/v1/databases/{db}/query", s.handle(RouteQuery, s.query)).Methods(http.MethodPost)
	r.HandleFunc("/v1/databases/{db}", s.handle(RouteSchema, s.database)).Methods(http.MethodGet)
	r.HandleFunc("/v1/pages", s.handle(RouteCreate, s.create)).Methods(http.MethodPost)
	r.HandleFunc("/v1/pages/{id}", s.handle(RouteGet, s.get)).Methods(http.MethodGet)
	r.HandleFunc("/v1/pages/{id}", s.handle(RouteUpdate, s.update)).Methods(http.MethodPatch)
	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// SetClock replaces the time source used for created/last-edited stamps.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetSchema sets the database property definitions from a JSON object.
func (s *Server) SetSchema(raw string) {
	b := schema.NewBag()
	if err := json.Unmarshal([]byte(raw), b); err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = b
}

// AddPage stores a record with properties given as a JSON object and returns its id.
func (s *Server) AddPage(rawProps string) string {
	b := schema.NewBag()
	if err := json.Unmarshal([]byte(rawProps), b); err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(b).ID
}

// AddRaw appends a literal result to every query response, after stored pages.
func (s *Server) AddRaw(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra = append(s.extra, json.RawMessage(raw))
}

// Edit replaces properties of id out of band and bumps its edit time.
func (s *Server) Edit(id, rawProps string) {
	b := schema.NewBag()
	if err := json.Unmarshal([]byte(rawProps), b); err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pages[id]
	merge(p.Properties, b)
	p.LastEditedTime = s.stamp()
}

// Page returns a copy of the stored record.
func (s *Server) Page(id string) (Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		return Page{}, false
	}
	return *p, true
}

// FailNext makes the next len(codes) calls to route answer with those statuses.
func (s *Server) FailNext(route string, codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], codes...)
}

// Calls returns how many requests reached route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TotalCalls returns the number of requests across all routes.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *Server) stamp() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func (s *Server) insert(props *schema.Bag) *Page {
	ts := s.stamp()
	p := &Page{
		ID:             uuid.NewString(),
		Object:         "page",
		CreatedTime:    ts,
		LastEditedTime: ts,
		Properties:     props,
	}
	s.pages[p.ID] = p
	s.order = append(s.order, p.ID)
	return p
}

func merge(dst, src *schema.Bag) {
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		dst.Set(k, v)
	}
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeError(w, http.StatusUnauthorized, "unauthorized", "API token is invalid.")
			return
		}
		if r.Header.Get("Notion-Version") == "" {
			writeError(w, http.StatusBadRequest, "missing_version", "Notion-Version header failed validation.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handle counts the call and serves any queued failure before fn.
func (s *Server) handle(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		var code int
		if q := s.failures[route]; len(q) > 0 {
			code, s.failures[route] = q[0], q[1:]
		}
		s.mu.Unlock()
		if code != 0 {
			writeError(w, code, "injected_failure", http.StatusText(code))
			return
		}
		if db, ok := mux.Vars(r)["db"]; ok && db != DatabaseID {
			writeError(w, http.StatusNotFound, "object_not_found", "Could not find database with ID: "+db)
			return
		}
		fn(w, r)
	}
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PageSize    int    `json:"page_size"`
		StartCursor string `json:"start_cursor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if req.PageSize <= 0 || req.PageSize > 100 {
		req.PageSize = 100
	}

	s.mu.Lock()
	var all []json.RawMessage
	for _, id := range s.order {
		p := s.pages[id]
		if p.Archived {
			continue
		}
		raw, _ := json.Marshal(p)
		all = append(all, raw)
	}
	all = append(all, s.extra...)
	s.mu.Unlock()

	start := 0
	if req.StartCursor != "" {
		n, err := strconv.Atoi(req.StartCursor)
		if err != nil || n < 0 || n > len(all) {
			writeError(w, http.StatusBadRequest, "validation_error", "start_cursor is invalid")
			return
		}
		start = n
	}
	end := min(start+req.PageSize, len(all))
	results := append([]json.RawMessage{}, all[start:end]...)

	resp := map[string]any{
		"object":      "list",
		"results":     results,
		"has_more":    end < len(all),
		"next_cursor": nil,
	}
	if end < len(all) {
		resp["next_cursor"] = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) database(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"object": "database", "id": DatabaseID, "properties": s.schema})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find page with ID: "+id)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parent struct {
			DatabaseID string `json:"database_id"`
		} `json:"parent"`
		Properties *schema.Bag `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if req.Parent.DatabaseID != DatabaseID {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find database with ID: "+req.Parent.DatabaseID)
		return
	}
	if req.Properties == nil {
		req.Properties = schema.NewBag()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.insert(req.Properties))
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Properties *schema.Bag `json:"properties"`
		Archived   *bool       `json:"archived"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find page with ID: "+id)
		return
	}
	if req.Properties != nil {
		merge(p.Properties, req.Properties)
	}
	if req.Archived != nil {
		p.Archived = *req.Archived
	}
	p.LastEditedTime = s.stamp()
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"object":  "error",
		"status":  status,
		"code":    code,
		"message": message,
	})
}

// Props builds a property bag JSON object from simple values: strings become
// rich text unless the key is listed in titles.
func Props(values map[string]string, titles ...string) string {
	b := schema.NewBag()
	isTitle := map[string]bool{}
	for _, t := range titles {
		isTitle[strings.ToLower(t)] = true
	}
	for k, v := range values {
		run := []schema.RichText{{PlainText: v, Text: &schema.TextBody{Content: v}}}
		if isTitle[strings.ToLower(k)] {
			b.Set(k, schema.Property{Type: "title", Title: run})
		} else {
			b.Set(k, schema.Property{Type: "rich_text", RichText: run})
		}
	}
	raw, _ := json.Marshal(b)
	return string(raw)
}
