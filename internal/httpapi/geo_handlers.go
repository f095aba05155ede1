package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"yaoundeconnect.org/internal/geo"
)

func (a *API) handleGeocode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.geocoder == nil {
		writeError(w, r, http.StatusServiceUnavailable, "geocoding disabled")
		return
	}
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		writeError(w, r, http.StatusBadRequest, "address query parameter is required")
		return
	}
	loc, err := a.geocoder.Geocode(r.Context(), address)
	if err != nil {
		if errors.Is(err, geo.ErrNoResult) {
			writeError(w, r, http.StatusNotFound, "address could not be resolved")
			return
		}
		writeError(w, r, http.StatusBadGateway, "geocoding failed")
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (a *API) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.geocoder == nil {
		writeError(w, r, http.StatusServiceUnavailable, "geocoding disabled")
		return
	}
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		writeError(w, r, http.StatusBadRequest, "lat and lon query parameters are required")
		return
	}
	loc, err := a.geocoder.Reverse(r.Context(), lat, lon)
	if err != nil {
		if errors.Is(err, geo.ErrNoResult) {
			writeError(w, r, http.StatusNotFound, "coordinates could not be resolved")
			return
		}
		writeError(w, r, http.StatusBadGateway, "geocoding failed")
		return
	}
	writeJSON(w, http.StatusOK, loc)
}
