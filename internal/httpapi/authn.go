package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"yaoundeconnect.org/internal/auth"
	"yaoundeconnect.org/internal/roles"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/",
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/v1/auth/register",
	"/v1/auth/login",
	"/v1/auth/verify-email",
	"/v1/stream",
	"/v1/ws",
	"/v1/geocode",
	"/v1/geocode/reverse",
}

// moderationSuffixes are POI sub-resources that always require a token even
// though the directory itself is publicly readable.
var moderationSuffixes = []string{"/pending", "/stats", "/history"}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.tokens == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			// Anonymous access is fine for public routes and directory reads.
			if isPublicRequest(r) {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		actor, err := a.tokens.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithActor(r.Context(), actor)))
	})
}

// requireActor pulls the authenticated actor or writes a 401.
func requireActor(w http.ResponseWriter, r *http.Request) (roles.Actor, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return roles.Actor{}, false
	}
	return actor, true
}

// requireModerator pulls the authenticated actor and checks the moderation
// read floor: queue, stats and history are staff-only projections.
func (a *API) requireModerator(w http.ResponseWriter, r *http.Request) (roles.Actor, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return roles.Actor{}, false
	}
	if !a.users.CanModerate(actor) {
		writeError(w, r, http.StatusForbidden, "insufficient role")
		return roles.Actor{}, false
	}
	return actor, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicRequest(r *http.Request) bool {
	path := r.URL.Path
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	// The approved directory is publicly readable; moderation projections
	// are not.
	if r.Method == http.MethodGet && strings.HasPrefix(path, "/v1/pois") {
		for _, suffix := range moderationSuffixes {
			if strings.HasSuffix(path, suffix) {
				return false
			}
		}
		return true
	}
	return false
}
