package routehandlers

import (
	"net/http"

	"github.com/coreybb/dispatch/datastore"
	"github.com/coreybb/dispatch/webutil"
)

type bulkRequest struct {
	IDs []string `json:"ids"`
}

type extendRequest struct {
	IDs  []string `json:"ids"`
	Days int      `json:"days"`
}

// bulkResponse lets callers detect partial application. Requested counts
// distinct ids.
type bulkResponse struct {
	Requested int `json:"requested"`
	Changed   int `json:"changed"`
}

func decodeIDs(r *http.Request) ([]string, error) {
	var req bulkRequest
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	if len(req.IDs) == 0 {
		return nil, webutil.ErrBadRequest("ids must contain at least one delivery ID")
	}
	return datastore.UniqueIDs(req.IDs), nil
}

func (h *DeliveryHandler) HandleBulkExtend(w http.ResponseWriter, r *http.Request) error {
	var req extendRequest
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		return err
	}
	if len(req.IDs) == 0 {
		return webutil.ErrBadRequest("ids must contain at least one delivery ID")
	}

	ids := datastore.UniqueIDs(req.IDs)
	changed, err := h.Store.ExtendDeadline(r.Context(), ids, req.Days)
	if err != nil {
		return err
	}
	webutil.RespondWithJSON(w, http.StatusOK, bulkResponse{Requested: len(ids), Changed: changed})
	return nil
}

func (h *DeliveryHandler) HandleBulkCancel(w http.ResponseWriter, r *http.Request) error {
	ids, err := decodeIDs(r)
	if err != nil {
		return err
	}
	changed := h.Store.Cancel(r.Context(), ids)
	webutil.RespondWithJSON(w, http.StatusOK, bulkResponse{Requested: len(ids), Changed: changed})
	return nil
}

func (h *DeliveryHandler) HandleBulkRemind(w http.ResponseWriter, r *http.Request) error {
	ids, err := decodeIDs(r)
	if err != nil {
		return err
	}
	sent := h.Store.Remind(r.Context(), ids)
	webutil.RespondWithJSON(w, http.StatusAccepted, bulkResponse{Requested: len(ids), Changed: sent})
	return nil
}

func (h *DeliveryHandler) HandleBulkDelete(w http.ResponseWriter, r *http.Request) error {
	ids, err := decodeIDs(r)
	if err != nil {
		return err
	}
	removed := h.Store.Delete(r.Context(), ids)
	webutil.RespondWithJSON(w, http.StatusOK, bulkResponse{Requested: len(ids), Changed: removed})
	return nil
}
