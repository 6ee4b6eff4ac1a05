package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	rh "github.com/coreybb/dispatch/route-handlers"
	"github.com/coreybb/dispatch/webutil"
)

const (
	apiBasePath        = "/api"
	deliveriesBasePath = "/deliveries"
	templatesBasePath  = "/templates"
	groupsBasePath     = "/groups"
	adminsBasePath     = "/admins"
)

const (
	bulkSubPath              = "/bulk"
	completeSubPath          = "/complete"
	progressSubPath          = "/progress"
	pauseSubPath             = "/pause"
	resumeSubPath            = "/resume"
	closeInstanceSubPath     = "/close-instance"
	dynamicGroupSubPath      = "/dynamic-group"
	permissionChangesSubPath = "/permission-changes"
)

const (
	paramID = "id" // General parameter name for resource IDs
)

const requestTimeout = 60 * time.Second

func SetupRoutes(
	deliveryHandler *rh.DeliveryHandler,
	catalogHandler *rh.CatalogHandler,
	permissionChangeHandler *rh.PermissionChangeHandler,
	allowedOrigins []string,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(RequestID)
	r.Use(RealIP)
	r.Use(Logger)    // Log every request
	r.Use(Recoverer) // Recover from panics
	r.Use(CORS(allowedOrigins))
	r.Use(Timeout(requestTimeout)) // Set a timeout context for requests

	r.Route(apiBasePath, func(r chi.Router) {
		r.Use(SetHeader(webutil.HeaderContentType, webutil.ContentTypeJSONUTF8)) // Default Content-Type
		configureDeliveryRoutes(r, deliveryHandler)
		configureCatalogRoutes(r, catalogHandler)
		configureAdminRoutes(r, permissionChangeHandler)
	})

	// Health check endpoint
	r.Get("/healthz", handleHealthCheck)

	return r
}

// Helper for constructing paths with a parameter
func pathWithParam(basePath string, paramName string) string {
	if basePath == "" {
		return "/{" + paramName + "}"
	}
	return basePath + "/{" + paramName + "}"
}

// --- Delivery Routes ---
func configureDeliveryRoutes(r chi.Router, handler *rh.DeliveryHandler) {
	specificDeliveryPath := pathWithParam("", paramID) // e.g., "/{id}"

	r.Route(deliveriesBasePath, func(r chi.Router) {
		r.Get("/", webutil.MakeHandler(handler.HandleGetDeliveries))
		r.Post("/", webutil.MakeHandler(handler.HandleCreateDelivery))

		// Bulk actions report {requested, changed}
		r.Route(bulkSubPath, func(r chi.Router) {
			r.Post("/extend", webutil.MakeHandler(handler.HandleBulkExtend))
			r.Post("/cancel", webutil.MakeHandler(handler.HandleBulkCancel))
			r.Post("/remind", webutil.MakeHandler(handler.HandleBulkRemind))
			r.Post("/delete", webutil.MakeHandler(handler.HandleBulkDelete))
		})

		r.Route(specificDeliveryPath, func(r chi.Router) {
			r.Get("/", webutil.MakeHandler(handler.HandleGetDelivery))
			r.Patch("/", webutil.MakeHandler(handler.HandleEditDelivery))
			r.Delete("/", webutil.MakeHandler(handler.HandleDeleteDelivery))
			r.Post(completeSubPath, webutil.MakeHandler(handler.HandleMarkComplete))
			r.Put(progressSubPath, webutil.MakeHandler(handler.HandleRecordProgress))
			// Recurring only
			r.Post(pauseSubPath, webutil.MakeHandler(handler.HandlePause))
			r.Post(resumeSubPath, webutil.MakeHandler(handler.HandleResume))
			r.Post(closeInstanceSubPath, webutil.MakeHandler(handler.HandleCloseInstance))
			r.Put(dynamicGroupSubPath, webutil.MakeHandler(handler.HandleSetDynamicGroup))
		})
	})
}

// --- Template and Group Routes ---
func configureCatalogRoutes(r chi.Router, handler *rh.CatalogHandler) {
	r.Get(templatesBasePath, webutil.MakeHandler(handler.HandleGetTemplates))
	r.Get(groupsBasePath, webutil.MakeHandler(handler.HandleGetGroups))
}

// --- Administrator Audit Routes ---
func configureAdminRoutes(r chi.Router, handler *rh.PermissionChangeHandler) {
	r.Route(adminsBasePath+permissionChangesSubPath, func(r chi.Router) {
		r.Get("/", webutil.MakeHandler(handler.HandleGetPermissionChanges)) // ?admin_id=&limit=
		r.Post("/", webutil.MakeHandler(handler.HandleCreatePermissionChange))
	})
}

// --- Utility Functions ---

// handleHealthCheck responds to a health check request.
func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(webutil.HeaderContentType, webutil.ContentTypeTextPlainUTF8)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
