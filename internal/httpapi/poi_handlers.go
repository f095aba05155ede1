package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"yaoundeconnect.org/internal/poi"
)

type listPOIsResponse struct {
	Items []poi.POI `json:"items"`
	Total int       `json:"total"`
	AsOf  time.Time `json:"as_of"`
}

func (a *API) handlePOICollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listPOIs(w, r)
	case http.MethodPost:
		a.createPOI(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePOIResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/pois/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	// Collection-level projections.
	switch path {
	case "nearby":
		a.nearbyPOIs(w, r)
		return
	case "pending":
		a.listPending(w, r)
		return
	case "stats":
		a.moderationStats(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			a.getPOI(w, r, id)
		case http.MethodPatch, http.MethodPut:
			a.updatePOI(w, r, id)
		case http.MethodDelete:
			a.deletePOI(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case "approve":
		a.moderatePOI(w, r, id, poi.ActionApprove)
	case "reject":
		a.moderatePOI(w, r, id, poi.ActionReject)
	case "reapprove":
		a.moderatePOI(w, r, id, poi.ActionReapprove)
	case "history":
		a.poiHistory(w, r, id)
	case "comments":
		a.handleComments(w, r, id)
	case "ratings":
		a.handleRatings(w, r, id)
	case "favorite":
		a.handleFavorite(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createPOI(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req poi.CreateInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// Submissions without coordinates get them resolved from the address.
	if req.Latitude == 0 && req.Longitude == 0 && a.geocoder != nil && strings.TrimSpace(req.Address) != "" {
		if loc, err := a.geocoder.Geocode(r.Context(), req.Address); err == nil {
			req.Latitude = loc.Latitude
			req.Longitude = loc.Longitude
		}
	}

	p, err := a.pois.Create(r.Context(), req, actor)
	if err != nil {
		handlePOIError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/pois/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) getPOI(w http.ResponseWriter, r *http.Request, id string) {
	p, err := a.pois.Get(r.Context(), id)
	if err != nil {
		handlePOIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) listPOIs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	filter := poi.ListFilter{
		Status:   poi.Status(strings.TrimSpace(r.URL.Query().Get("status"))),
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Quartier: strings.TrimSpace(r.URL.Query().Get("quartier")),
		Limit:    limit,
		Offset:   offset,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, r, http.StatusBadRequest, "unknown status filter")
		return
	}

	items, total, err := a.pois.List(r.Context(), filter)
	if err != nil {
		handlePOIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listPOIsResponse{
		Items: items,
		Total: total,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) updatePOI(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req poi.Update
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.pois.Update(r.Context(), id, req, actor)
	if err != nil {
		handlePOIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deletePOI(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := a.pois.Delete(r.Context(), id, actor); err != nil {
		handlePOIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) nearbyPOIs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		writeError(w, r, http.StatusBadRequest, "lat and lon query parameters are required")
		return
	}
	radiusKm := 5.0
	if raw := q.Get("radius_km"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || v > 100 {
			writeError(w, r, http.StatusBadRequest, "radius_km must be between 0 and 100")
			return
		}
		radiusKm = v
	}
	limit, _ := parsePage(r)

	items, err := a.pois.Nearby(r.Context(), lat, lon, radiusKm, limit)
	if err != nil {
		handlePOIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     items,
		"radius_km": radiusKm,
	})
}
