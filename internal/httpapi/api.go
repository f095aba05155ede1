// Package httpapi is the HTTP layer of the directory service.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"yaoundeconnect.org/internal/audit"
	"yaoundeconnect.org/internal/auth"
	"yaoundeconnect.org/internal/geo"
	"yaoundeconnect.org/internal/obs"
	"yaoundeconnect.org/internal/poi"
	"yaoundeconnect.org/internal/stream"
)

// ReadyProbe reports whether the service can take traffic (e.g. DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API wires handlers to their collaborators.
type API struct {
	mux        *http.ServeMux
	pois       poi.Service
	social     poi.SocialStore
	users      *auth.Service
	tokens     *auth.TokenService
	history    audit.History
	geocoder   geo.Geocoder
	stream     *stream.Stream
	readyProbe ReadyProbe
	version    string
}

// Option configures the API.
type Option func(*API)

// WithSocial enables comment/rating/favorite routes.
func WithSocial(s poi.SocialStore) Option {
	return func(a *API) { a.social = s }
}

// WithHistory enables the audit history route.
func WithHistory(h audit.History) Option {
	return func(a *API) { a.history = h }
}

// WithGeocoder enables the geocoding routes.
func WithGeocoder(g geo.Geocoder) Option {
	return func(a *API) { a.geocoder = g }
}

// WithStream enables the SSE and WebSocket routes.
func WithStream(s *stream.Stream) Option {
	return func(a *API) { a.stream = s }
}

// WithReadyProbe sets the readiness check.
func WithReadyProbe(rp ReadyProbe) Option {
	return func(a *API) { a.readyProbe = rp }
}

func New(pois poi.Service, users *auth.Service, tokens *auth.TokenService, version string, opts ...Option) *API {
	a := &API{
		mux:     http.NewServeMux(),
		pois:    pois,
		users:   users,
		tokens:  tokens,
		version: version,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/verify-email", a.handleVerifyEmail)

	// directory
	a.mux.HandleFunc("/v1/pois", a.handlePOICollection)
	a.mux.HandleFunc("/v1/pois/", a.handlePOIResource)
	a.mux.HandleFunc("/v1/me/favorites", a.handleMyFavorites)

	// user management
	a.mux.HandleFunc("/v1/users", a.handleUserCollection)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	// geocoding
	a.mux.HandleFunc("/v1/geocode", a.handleGeocode)
	a.mux.HandleFunc("/v1/geocode/reverse", a.handleReverseGeocode)

	// realtime
	a.mux.HandleFunc("/v1/stream", a.Stream)
	a.mux.HandleFunc("/v1/ws", a.WebSocket)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.withAuth(a.mux))
}
