package routehandlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/coreybb/dispatch/datastore"
	"github.com/coreybb/dispatch/models"
	"github.com/coreybb/dispatch/webutil"
)

const maxPermissionChangeLimit = 500

type PermissionChangeHandler struct {
	Repo *datastore.PermissionChangeRepository
}

func NewPermissionChangeHandler(repo *datastore.PermissionChangeRepository) *PermissionChangeHandler {
	return &PermissionChangeHandler{Repo: repo}
}

// HandleGetPermissionChanges lists audit entries oldest first: ?admin_id=&limit=
func (h *PermissionChangeHandler) HandleGetPermissionChanges(w http.ResponseWriter, r *http.Request) error {
	limit := maxPermissionChangeLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 || n > maxPermissionChangeLimit {
			return webutil.ErrBadRequest(fmt.Sprintf("limit must be between 1 and %d", maxPermissionChangeLimit))
		}
		limit = n
	}

	changes, err := h.Repo.List(r.Context(), r.URL.Query().Get("admin_id"), limit)
	if err != nil {
		return fmt.Errorf("failed to retrieve permission changes: %w", err)
	}
	webutil.RespondWithJSON(w, http.StatusOK, changes)
	return nil
}

func (h *PermissionChangeHandler) HandleCreatePermissionChange(w http.ResponseWriter, r *http.Request) error {
	var req struct {
		SubjectAdminID string `json:"subject_admin_id"`
		ChangedBy      string `json:"changed_by"`
		Action         string `json:"action"`
		Details        string `json:"details"`
	}
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		return err
	}

	change := models.PermissionChange{
		SubjectAdminID: webutil.PlainText(req.SubjectAdminID),
		ChangedBy:      webutil.PlainText(req.ChangedBy),
		Action:         models.PermissionAction(req.Action),
		Details:        webutil.PlainText(req.Details),
	}
	if err := h.Repo.Append(r.Context(), &change); err != nil {
		return fmt.Errorf("failed to record permission change: %w", err)
	}
	webutil.RespondWithJSON(w, http.StatusCreated, change)
	return nil
}
