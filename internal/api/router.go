package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mycelian/contacts-service/internal/api/recovery"
	"github.com/mycelian/contacts-service/internal/synccache"
)

// Deps are the components the router serves.
type Deps struct {
	Store   ContactStore
	Cache   *synccache.Cache
	Healthy func() bool
	Down    func() []string
	Log     zerolog.Logger
}

// NewRouter creates the HTTP router with every API route.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()

	router.Use(requestLogger(d.Log))
	router.Use(recovery.Middleware)

	healthHandler := NewHealthHandler(d.Healthy, d.Down, d.Cache)
	contactHandler := NewContactHandler(d.Store, d.Cache)

	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/api/contacts", contactHandler.ListContacts).Methods(http.MethodGet)
	router.HandleFunc("/api/contacts", contactHandler.CreateContact).Methods(http.MethodPost)
	router.HandleFunc("/api/contacts/{id}", contactHandler.GetContact).Methods(http.MethodGet)
	router.HandleFunc("/api/contacts/{id}", contactHandler.UpdateContact).Methods(http.MethodPatch)
	router.HandleFunc("/api/contacts/{id}", contactHandler.DeleteContact).Methods(http.MethodDelete)

	return router
}
