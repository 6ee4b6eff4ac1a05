package routehandlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coreybb/dispatch/datastore"
	"github.com/coreybb/dispatch/models"
	"github.com/coreybb/dispatch/webutil"
	"github.com/go-chi/chi/v5"
)

type DeliveryHandler struct {
	Store *datastore.DeliveryStore
}

func NewDeliveryHandler(store *datastore.DeliveryStore) *DeliveryHandler {
	return &DeliveryHandler{Store: store}
}

type createDeliveryRequest struct {
	TemplateID       string     `json:"template_id"`
	TargetGroup      string     `json:"target_group"`
	WindowStart      *time.Time `json:"window_start"`
	WindowEnd        *time.Time `json:"window_end"`
	StartImmediately bool       `json:"start_immediately"`
	TotalRecipients  *int       `json:"total_recipients"` // free-text groups only
	CreatedBy        string     `json:"created_by"`
	Recurring        bool       `json:"recurring"`
	Frequency        string     `json:"frequency"`
	DynamicGroup     bool       `json:"dynamic_group"`
}

type editDeliveryRequest struct {
	TargetGroup     *string    `json:"target_group"`
	WindowStart     *time.Time `json:"window_start"`
	WindowEnd       *time.Time `json:"window_end"`
	TotalRecipients *int       `json:"total_recipients"`
}

// HandleGetDeliveries lists deliveries with optional filters:
// ?title=&group=&status=&kind=&recurring=&sort=&order=asc|desc
func (h *DeliveryHandler) HandleGetDeliveries(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	filter := datastore.DeliveryFilter{
		Title:       q.Get("title"),
		TargetGroup: q.Get("group"),
	}

	if s := q.Get("status"); s != "" {
		status, ok := models.IsValidDeliveryStatus(s)
		if !ok {
			return webutil.ErrBadRequest(fmt.Sprintf("Invalid status %q", s))
		}
		filter.Status = status
	}
	if k := q.Get("kind"); k != "" {
		kind, ok := models.IsValidDeliveryKind(k)
		if !ok {
			return webutil.ErrBadRequest(fmt.Sprintf("Invalid kind %q. Must be one of: %s, %s", k, models.DeliveryKindAssessment, models.DeliveryKindSurvey))
		}
		filter.Kind = kind
	}
	if rec := q.Get("recurring"); rec != "" {
		b, err := strconv.ParseBool(rec)
		if err != nil {
			return webutil.ErrBadRequest("recurring must be true or false")
		}
		filter.Recurring = &b
	}

	key, err := datastore.ParseSortKey(q.Get("sort"))
	if err != nil {
		return err
	}
	order := datastore.DeliverySort{Key: key}
	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		order.Descending = true
	default:
		return webutil.ErrBadRequest("order must be asc or desc")
	}

	webutil.RespondWithJSON(w, http.StatusOK, h.Store.List(r.Context(), filter, order))
	return nil
}

func (h *DeliveryHandler) HandleCreateDelivery(w http.ResponseWriter, r *http.Request) error {
	var req createDeliveryRequest
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		return err
	}

	if req.TemplateID == "" || req.TargetGroup == "" || req.WindowEnd == nil {
		return webutil.ErrBadRequest("Missing required fields (template_id, target_group, window_end)")
	}
	if req.WindowStart == nil && !req.StartImmediately {
		return webutil.ErrBadRequest("window_start is required unless start_immediately is set")
	}

	in := datastore.CreateDeliveryInput{
		TemplateID:       req.TemplateID,
		TargetGroup:      webutil.PlainText(req.TargetGroup),
		WindowEnd:        *req.WindowEnd,
		StartImmediately: req.StartImmediately,
		TotalRecipients:  req.TotalRecipients,
		CreatedBy:        webutil.PlainText(req.CreatedBy),
		Recurring:        req.Recurring,
		Frequency:        models.Frequency(req.Frequency),
		DynamicGroup:     req.DynamicGroup,
	}
	if req.WindowStart != nil {
		in.WindowStart = *req.WindowStart
	}

	created, err := h.Store.Create(r.Context(), in)
	if err != nil {
		return fmt.Errorf("failed to create delivery: %w", err)
	}

	webutil.RespondWithJSON(w, http.StatusCreated, created)
	return nil
}

func (h *DeliveryHandler) HandleGetDelivery(w http.ResponseWriter, r *http.Request) error {
	delivery, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	webutil.RespondWithJSON(w, http.StatusOK, delivery)
	return nil
}

func (h *DeliveryHandler) HandleEditDelivery(w http.ResponseWriter, r *http.Request) error {
	var req editDeliveryRequest
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		return err
	}

	updated, err := h.Store.Edit(r.Context(), chi.URLParam(r, "id"), datastore.DeliveryPatch{
		TargetGroup:     webutil.PlainTextPtr(req.TargetGroup),
		WindowStart:     req.WindowStart,
		WindowEnd:       req.WindowEnd,
		TotalRecipients: req.TotalRecipients,
	})
	if err != nil {
		return err
	}
	webutil.RespondWithJSON(w, http.StatusOK, updated)
	return nil
}

func (h *DeliveryHandler) HandleDeleteDelivery(w http.ResponseWriter, r *http.Request) error {
	deliveryID := chi.URLParam(r, "id")
	if h.Store.Delete(r.Context(), []string{deliveryID}) == 0 {
		return webutil.ErrNotFound("Delivery not found")
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *DeliveryHandler) HandleMarkComplete(w http.ResponseWriter, r *http.Request) error {
	return h.respond(w, r, h.Store.MarkComplete)
}

func (h *DeliveryHandler) HandleRecordProgress(w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Completed *int `json:"completed"`
	}
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		return err
	}
	if req.Completed == nil {
		return webutil.ErrBadRequest("completed is required")
	}

	updated, err := h.Store.RecordProgress(r.Context(), chi.URLParam(r, "id"), *req.Completed)
	if err != nil {
		return err
	}
	webutil.RespondWithJSON(w, http.StatusOK, updated)
	return nil
}

// respond runs a single-delivery operation keyed by the {id} path parameter.
func (h *DeliveryHandler) respond(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id string) (models.DeliverySnapshot, error)) error {
	updated, err := op(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	webutil.RespondWithJSON(w, http.StatusOK, updated)
	return nil
}
