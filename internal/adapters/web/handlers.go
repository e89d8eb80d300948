package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"receiving-engine/internal/app"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)

	// Scan upload: body limit is managed inside the handler (multipart, up to 20 MB).
	r.Post("/api/receiving/scans", h.openScan)

	// All other endpoints: 1 MB body limit to prevent unbounded request abuse.
	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// Receiving sessions
		r.Post("/api/receiving/sessions", h.openSession)
		r.Get("/api/receiving/sessions/{id}", h.getSession)
		r.Patch("/api/receiving/sessions/{id}/lines/{lineID}", h.editLine)
		r.Post("/api/receiving/sessions/{id}/lines/{lineID}/remap", h.remapLine)
		r.Post("/api/receiving/sessions/{id}/confirm", h.confirmSession)
		r.Post("/api/receiving/sessions/{id}/discard", h.discardSession)

		// Catalog and stock
		r.Get("/api/catalog/search", h.searchCatalog)
		r.Get("/api/stock", h.stockLevels)

		// Suppliers
		r.Get("/api/suppliers", h.listSuppliers)
		r.Post("/api/suppliers", h.createSupplier)

		// Purchase orders
		r.Get("/api/purchase-orders", h.listPurchaseOrders)
		r.Post("/api/purchase-orders", h.createPurchaseOrder)
		r.Get("/api/purchase-orders/{id}", h.getPurchaseOrder)
	})

	h.router = r
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// businessID extracts the business_id query parameter; 0 means absent.
func businessID(r *http.Request) int {
	id, _ := strconv.Atoi(r.URL.Query().Get("business_id"))
	return id
}

// urlInt extracts an integer URL parameter.
func urlInt(r *http.Request, name string) (int, error) {
	return strconv.Atoi(chi.URLParam(r, name))
}

// sessionID extracts the {id} URL parameter.
func sessionID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// formInt extracts an integer form value; 0 means absent or malformed.
func formInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.FormValue(name))
	return n
}

// decodeJSON decodes the request body into v and returns false + writes an
// appropriate error response on failure. Returns HTTP 413 when the body
// exceeds the size limit set by RequestBodyLimit middleware; HTTP 400 for
// all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
