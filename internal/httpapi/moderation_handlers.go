package httpapi

import (
	"net/http"

	"yaoundeconnect.org/internal/poi"
)

type moderationRequest struct {
	Reason   string `json:"reason"`
	Comments string `json:"comments"`
}

func (a *API) moderatePOI(w http.ResponseWriter, r *http.Request, id string, action poi.ModerationAction) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req moderationRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	var (
		p   poi.POI
		err error
	)
	switch action {
	case poi.ActionApprove:
		p, err = a.pois.Approve(r.Context(), id, actor, req.Comments)
	case poi.ActionReject:
		p, err = a.pois.Reject(r.Context(), id, actor, req.Reason)
	case poi.ActionReapprove:
		p, err = a.pois.Reapprove(r.Context(), id, actor, req.Comments)
	}
	if err != nil {
		handlePOIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) listPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireModerator(w, r); !ok {
		return
	}
	limit, offset := parsePage(r)
	items, err := a.pois.ListPending(r.Context(), limit, offset)
	if err != nil {
		handlePOIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) moderationStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireModerator(w, r); !ok {
		return
	}
	st, err := a.pois.Stats(r.Context())
	if err != nil {
		handlePOIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) poiHistory(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireModerator(w, r); !ok {
		return
	}
	if a.history == nil {
		writeError(w, r, http.StatusServiceUnavailable, "history disabled")
		return
	}
	entries, err := a.history.History(r.Context(), poi.TableName, id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}
