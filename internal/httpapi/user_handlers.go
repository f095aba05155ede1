package httpapi

import (
	"net/http"
	"strings"

	"yaoundeconnect.org/internal/auth"
	"yaoundeconnect.org/internal/roles"
)

func (a *API) handleUserCollection(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		limit, offset := parsePage(r)
		items, err := a.users.List(r.Context(), actor, limit, offset)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req auth.CreateUserInput
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.users.CreateUser(r.Context(), actor, req)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		w.Header().Set("Location", "/v1/users/"+user.ID)
		writeJSON(w, http.StatusCreated, user)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	id, sub, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			a.getUser(w, r, actor, id)
		case http.MethodPatch, http.MethodPut:
			a.updateUser(w, r, actor, id)
		case http.MethodDelete:
			if err := a.users.DeleteUser(r.Context(), actor, id); err != nil {
				handleAuthError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case "password":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		var req struct {
			Password string `json:"password"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.users.ResetPassword(r.Context(), actor, id, req.Password); err != nil {
			handleAuthError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, actor roles.Actor, id string) {
	// Members may look up themselves; staff roles may look up anyone.
	if actor.ID != id && !a.users.CanListUsers(actor) {
		writeError(w, r, http.StatusForbidden, "insufficient role")
		return
	}
	user, err := a.users.Get(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, actor roles.Actor, id string) {
	var req auth.UserUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.users.UpdateUser(r.Context(), actor, id, req)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
