package routehandlers

import (
	"net/http"

	"github.com/coreybb/dispatch/datastore"
	"github.com/coreybb/dispatch/webutil"
)

type CatalogHandler struct {
	Templates *datastore.TemplateCatalog
	Groups    *datastore.GroupDirectory
}

func NewCatalogHandler(templates *datastore.TemplateCatalog, groups *datastore.GroupDirectory) *CatalogHandler {
	return &CatalogHandler{Templates: templates, Groups: groups}
}

func (h *CatalogHandler) HandleGetTemplates(w http.ResponseWriter, r *http.Request) error {
	webutil.RespondWithJSON(w, http.StatusOK, h.Templates.ListTemplates(r.Context()))
	return nil
}

func (h *CatalogHandler) HandleGetGroups(w http.ResponseWriter, r *http.Request) error {
	webutil.RespondWithJSON(w, http.StatusOK, h.Groups.ListGroups(r.Context()))
	return nil
}
