package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"yaoundeconnect.org/internal/audit"
	"yaoundeconnect.org/internal/auth"
	"yaoundeconnect.org/internal/ids"
	"yaoundeconnect.org/internal/poi"
	"yaoundeconnect.org/internal/roles"
	"yaoundeconnect.org/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
	users   *auth.MemoryStore
	pois    *poi.InMemory
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	resolver := roles.NewResolver(roles.DefaultHierarchy())
	auditLog := audit.NewMemory()
	directory := poi.NewInMemory(resolver, auditLog, nil)
	social := poi.NewInMemorySocial(directory)
	userStore := auth.NewMemoryStore(auditLog)

	tokens, err := auth.NewTokenService("test-secret", "yaoundeconnect")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	userSvc, err := auth.NewService(userStore, tokens, resolver, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	api := New(directory, userSvc, tokens, "test",
		WithSocial(social),
		WithHistory(auditLog),
		WithStream(stream.New()),
	)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
		users:   userStore,
		pois:    directory,
	}
}

// seedUser provisions a verified account directly in the store and returns
// its id; tokens are then obtained through the login route.
func (c *apiClient) seedUser(email, password string, role roles.Role) string {
	c.t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		c.t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	u := &auth.User{
		ID:            ids.New(),
		Name:          "Seed " + role.String(),
		Email:         email,
		PasswordHash:  hash,
		Role:          role,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.users.Create(context.Background(), u, u.ID); err != nil {
		c.t.Fatalf("seed user: %v", err)
	}
	return u.ID
}

func (c *apiClient) login(email, password string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected login status: %d", resp.StatusCode)
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode login response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestSubmitModerateFlow(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("collector@example.com", "motdepasse123", roles.Collecteur)
	modID := api.seedUser("mod@example.com", "motdepasse123", roles.Moderateur)
	collectorAuth := bearerHeader(api.login("collector@example.com", "motdepasse123"))
	modAuth := bearerHeader(api.login("mod@example.com", "motdepasse123"))

	// Collector submits a POI; it starts pending.
	resp := api.post("/v1/pois", map[string]any{
		"name":      "Marché Mokolo",
		"category":  "marché",
		"quartier":  "Mokolo",
		"latitude":  3.8786,
		"longitude": 11.4948,
	}, collectorAuth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	created := decode[map[string]any](t, resp)
	id := created["id"].(string)
	if created["status"] != "pending" {
		t.Fatalf("new POI must start pending, got %v", created["status"])
	}

	// The moderation queue shows it.
	resp = api.get("/v1/pois/pending", nil, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected pending status: %d", resp.StatusCode)
	}
	pending := decode[map[string]any](t, resp)
	if n := len(pending["items"].([]any)); n != 1 {
		t.Fatalf("expected 1 pending POI, got %d", n)
	}

	// Moderator approves.
	resp = api.post("/v1/pois/"+id+"/approve", map[string]any{"comments": "verified on site"}, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected approve status: %d", resp.StatusCode)
	}
	approved := decode[map[string]any](t, resp)
	if approved["status"] != "approved" || approved["approved_by"] != modID {
		t.Fatalf("unexpected approval result: %v", approved)
	}
	if approved["is_verify"] != true {
		t.Fatalf("approved POI must be verified")
	}

	// Second approval conflicts.
	resp = api.post("/v1/pois/"+id+"/approve", nil, modAuth)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on double approval, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Audit history carries both the creation and the transition.
	resp = api.get("/v1/pois/"+id+"/history", nil, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected history status: %d", resp.StatusCode)
	}
	history := decode[map[string]any](t, resp)
	if n := len(history["items"].([]any)); n != 2 {
		t.Fatalf("expected 2 audit entries, got %d", n)
	}

	// The approved POI is publicly readable without a token.
	resp = api.get("/v1/pois/"+id, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected public read, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRejectRequiresReason(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("collector@example.com", "motdepasse123", roles.Collecteur)
	api.seedUser("mod@example.com", "motdepasse123", roles.Moderateur)
	collectorAuth := bearerHeader(api.login("collector@example.com", "motdepasse123"))
	modAuth := bearerHeader(api.login("mod@example.com", "motdepasse123"))

	resp := api.post("/v1/pois", map[string]any{
		"name":      "Bar Inconnu",
		"category":  "bar",
		"latitude":  3.85,
		"longitude": 11.5,
	}, collectorAuth)
	created := decode[map[string]any](t, resp)
	id := created["id"].(string)

	resp = api.post("/v1/pois/"+id+"/reject", map[string]any{"reason": "court"}, modAuth)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for short reason, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/pois/"+id+"/reject", map[string]any{"reason": "duplicate of an existing entry"}, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected reject status: %d", resp.StatusCode)
	}
	rejected := decode[map[string]any](t, resp)
	if rejected["status"] != "rejected" {
		t.Fatalf("unexpected status: %v", rejected["status"])
	}

	// Reapprove brings it back.
	resp = api.post("/v1/pois/"+id+"/reapprove", nil, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected reapprove status: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestModerationDeniedForMembers(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("collector@example.com", "motdepasse123", roles.Collecteur)
	api.seedUser("member@example.com", "motdepasse123", roles.Membre)
	collectorAuth := bearerHeader(api.login("collector@example.com", "motdepasse123"))
	memberAuth := bearerHeader(api.login("member@example.com", "motdepasse123"))

	resp := api.post("/v1/pois", map[string]any{
		"name":      "Pharmacie du Centre",
		"category":  "pharmacie",
		"latitude":  3.86,
		"longitude": 11.51,
	}, collectorAuth)
	created := decode[map[string]any](t, resp)
	id := created["id"].(string)

	resp = api.post("/v1/pois/"+id+"/approve", nil, memberAuth)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Anonymous moderation is 401.
	resp = api.post("/v1/pois/"+id+"/approve", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The moderation projections are staff-only even with a valid token.
	for _, path := range []string{"/v1/pois/pending", "/v1/pois/stats", "/v1/pois/" + id + "/history"} {
		resp = api.get(path, nil, memberAuth)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("%s: expected 403 for membre, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/register", map[string]any{
		"name":     "Nouveau Membre",
		"email":    "nouveau@example.com",
		"password": "motdepasse123",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected register status: %d", resp.StatusCode)
	}
	user := decode[map[string]any](t, resp)
	if user["role"] != "membre" {
		t.Fatalf("self-registered accounts must be membre, got %v", user["role"])
	}

	// Login before verification is rejected.
	resp = api.post("/v1/auth/login", map[string]any{
		"email":    "nouveau@example.com",
		"password": "motdepasse123",
	}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 before verification, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	stored, err := api.users.FindByID(context.Background(), user["id"].(string))
	if err != nil {
		t.Fatal(err)
	}
	resp = api.get("/v1/auth/verify-email", url.Values{"token": []string{stored.VerifyToken}}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected verify status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	api.login("nouveau@example.com", "motdepasse123")
}

func TestUserManagementGuards(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("admin@example.com", "motdepasse123", roles.Admin)
	adminAuth := bearerHeader(api.login("admin@example.com", "motdepasse123"))

	// Admin may not mint superadmin accounts.
	resp := api.post("/v1/users", map[string]any{
		"name":     "Eve",
		"email":    "eve@example.com",
		"password": "motdepasse123",
		"role":     "superadmin",
	}, adminAuth)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Creating a moderator is within the admin's reach.
	resp = api.post("/v1/users", map[string]any{
		"name":     "Modo",
		"email":    "modo@example.com",
		"password": "motdepasse123",
		"role":     "moderateur",
	}, adminAuth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Listing users requires a token.
	resp = api.get("/v1/users", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCommentsAndRatings(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("collector@example.com", "motdepasse123", roles.Collecteur)
	api.seedUser("member@example.com", "motdepasse123", roles.Membre)
	collectorAuth := bearerHeader(api.login("collector@example.com", "motdepasse123"))
	memberAuth := bearerHeader(api.login("member@example.com", "motdepasse123"))

	resp := api.post("/v1/pois", map[string]any{
		"name":      "Restaurant Le Foufou",
		"category":  "restaurant",
		"latitude":  3.84,
		"longitude": 11.5,
	}, collectorAuth)
	created := decode[map[string]any](t, resp)
	id := created["id"].(string)

	resp = api.post("/v1/pois/"+id+"/comments", map[string]any{"content": "Très bon ndolé"}, memberAuth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected comment status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/pois/"+id+"/ratings", map[string]any{"value": 5}, memberAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected rating status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/pois/"+id+"/ratings", nil, nil)
	summary := decode[map[string]any](t, resp)
	if summary["average"].(float64) != 5 || summary["count"].(float64) != 1 {
		t.Fatalf("unexpected rating summary: %v", summary)
	}

	resp = api.post("/v1/pois/"+id+"/ratings", map[string]any{"value": 7}, memberAuth)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range rating, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := api.get(path, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s returned %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}
