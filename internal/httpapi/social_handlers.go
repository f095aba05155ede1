package httpapi

import (
	"net/http"
)

func (a *API) handleComments(w http.ResponseWriter, r *http.Request, poiID string) {
	if a.social == nil {
		writeError(w, r, http.StatusServiceUnavailable, "comments disabled")
		return
	}
	switch r.Method {
	case http.MethodGet:
		limit, offset := parsePage(r)
		items, err := a.social.ListComments(r.Context(), poiID, limit, offset)
		if err != nil {
			handlePOIError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		var req struct {
			Content string `json:"content"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		c, err := a.social.AddComment(r.Context(), poiID, actor.ID, req.Content)
		if err != nil {
			handlePOIError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRatings(w http.ResponseWriter, r *http.Request, poiID string) {
	if a.social == nil {
		writeError(w, r, http.StatusServiceUnavailable, "ratings disabled")
		return
	}
	switch r.Method {
	case http.MethodGet:
		sum, err := a.social.Ratings(r.Context(), poiID)
		if err != nil {
			handlePOIError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	case http.MethodPost, http.MethodPut:
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		var req struct {
			Value int `json:"value"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		rating, err := a.social.Rate(r.Context(), poiID, actor.ID, req.Value)
		if err != nil {
			handlePOIError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rating)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut)
	}
}

func (a *API) handleFavorite(w http.ResponseWriter, r *http.Request, poiID string) {
	if a.social == nil {
		writeError(w, r, http.StatusServiceUnavailable, "favorites disabled")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPut:
		if err := a.social.SetFavorite(r.Context(), poiID, actor.ID, true); err != nil {
			handlePOIError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := a.social.SetFavorite(r.Context(), poiID, actor.ID, false); err != nil {
			handlePOIError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleMyFavorites(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.social == nil {
		writeError(w, r, http.StatusServiceUnavailable, "favorites disabled")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	items, err := a.social.ListFavorites(r.Context(), actor.ID)
	if err != nil {
		handlePOIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
