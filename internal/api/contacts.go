package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	respond "github.com/mycelian/contacts-service/internal/api/respond"
	"github.com/mycelian/contacts-service/internal/api/validate"
	"github.com/mycelian/contacts-service/internal/model"
	"github.com/mycelian/contacts-service/internal/synccache"
)

// ContactStore is the remote system of record.
type ContactStore interface {
	FetchOne(ctx context.Context, id string) (model.Contact, bool, error)
	Create(ctx context.Context, c model.Contact) (model.Contact, error)
	Update(ctx context.Context, id string, p model.Patch) (model.Contact, error)
	Archive(ctx context.Context, id string) error
}

// ContactHandler serves reads from the cache and sends writes to the store,
// echoing each successful write into the cache.
type ContactHandler struct {
	store ContactStore
	cache *synccache.Cache
}

func NewContactHandler(store ContactStore, cache *synccache.Cache) *ContactHandler {
	return &ContactHandler{store: store, cache: cache}
}

// ListContacts GET /api/contacts
func (h *ContactHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	all, err := h.cache.Load(r.Context(), q.refresh)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := q.apply(all)
	zerolog.Ctx(r.Context()).Debug().
		Int("total", len(all)).
		Int("returned", len(out)).
		Msg("listed contacts")
	respond.WriteJSON(w, http.StatusOK, out)
}

// GetContact GET /api/contacts/{id}
func (h *ContactHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if c, ok := h.cache.Get(id); ok {
		respond.WriteJSON(w, http.StatusOK, c)
		return
	}
	c, found, err := h.store.FetchOne(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !found {
		respond.WriteNotFound(w, "Contact not found")
		return
	}
	respond.WriteJSON(w, http.StatusOK, c)
}

// CreateContact POST /api/contacts
func (h *ContactHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var in model.Contact
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.CreateContact(in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	created, err := h.store.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.cache.ApplyLocalCreate(created)
	respond.WriteJSON(w, http.StatusCreated, created)
}

// UpdateContact PATCH /api/contacts/{id}
func (h *ContactHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in model.Patch
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.UpdateContact(in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	updated, err := h.store.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.cache.ApplyLocalUpdate(id, updated)
	respond.WriteJSON(w, http.StatusOK, updated)
}

// DeleteContact DELETE /api/contacts/{id}
func (h *ContactHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.Archive(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.cache.ApplyLocalDelete(id)
	zerolog.Ctx(r.Context()).Info().Str("id", id).Msg("archived contact")
	w.WriteHeader(http.StatusNoContent)
}
