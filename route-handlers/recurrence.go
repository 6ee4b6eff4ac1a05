package routehandlers

import (
	"net/http"

	"github.com/coreybb/dispatch/webutil"
	"github.com/go-chi/chi/v5"
)

func (h *DeliveryHandler) HandlePause(w http.ResponseWriter, r *http.Request) error {
	return h.respond(w, r, h.Store.Pause)
}

func (h *DeliveryHandler) HandleResume(w http.ResponseWriter, r *http.Request) error {
	return h.respond(w, r, h.Store.Resume)
}

func (h *DeliveryHandler) HandleCloseInstance(w http.ResponseWriter, r *http.Request) error {
	return h.respond(w, r, h.Store.CloseInstance)
}

func (h *DeliveryHandler) HandleSetDynamicGroup(w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		return err
	}
	if req.Enabled == nil {
		return webutil.ErrBadRequest("enabled is required")
	}

	updated, err := h.Store.SetDynamicGroup(r.Context(), chi.URLParam(r, "id"), *req.Enabled)
	if err != nil {
		return err
	}
	webutil.RespondWithJSON(w, http.StatusOK, updated)
	return nil
}
