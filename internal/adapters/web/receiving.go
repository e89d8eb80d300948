package web

import (
	"io"
	"net/http"

	"receiving-engine/internal/app"
)

const maxScanBytes = 20 << 20 // 20 MB

// openSession handles POST /api/receiving/sessions with pre-extracted OCR output.
func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) {
	var req app.OpenSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.OpenSession(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeBody(w, result)
}

// openScan handles POST /api/receiving/scans, a multipart invoice photo upload.
// Form fields: image (file), business_id, operator_key, and optionally
// linked_order_id and supplier_id.
func (h *Handler) openScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxScanBytes)
	if err := r.ParseMultipartForm(maxScanBytes); err != nil {
		writeError(w, r, "invalid multipart upload: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, "missing image file", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, "read upload: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	req := app.OpenScanRequest{
		BusinessID:  formInt(r, "business_id"),
		OperatorKey: r.FormValue("operator_key"),
		MimeType:    mimeType,
		Image:       image,
	}
	if id := formInt(r, "linked_order_id"); id != 0 {
		req.LinkedOrderID = &id
	}
	if id := formInt(r, "supplier_id"); id != 0 {
		req.SupplierID = &id
	}

	result, err := h.svc.OpenSessionFromImage(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeBody(w, result)
}

// getSession handles GET /api/receiving/sessions/{id}.
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetSession(r.Context(), sessionID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// editLine handles PATCH /api/receiving/sessions/{id}/lines/{lineID}.
func (h *Handler) editLine(w http.ResponseWriter, r *http.Request) {
	lineID, err := urlInt(r, "lineID")
	if err != nil {
		writeError(w, r, "invalid line id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req app.EditLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.SessionID = sessionID(r)
	req.LineID = lineID

	result, err := h.svc.EditLine(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// remapLine handles POST /api/receiving/sessions/{id}/lines/{lineID}/remap.
// A null catalog_item_id unmaps the line and flags it as a new item.
func (h *Handler) remapLine(w http.ResponseWriter, r *http.Request) {
	lineID, err := urlInt(r, "lineID")
	if err != nil {
		writeError(w, r, "invalid line id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req app.RemapLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.SessionID = sessionID(r)
	req.LineID = lineID

	result, err := h.svc.RemapLine(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// confirmSession handles POST /api/receiving/sessions/{id}/confirm. The
// idempotency key may arrive in the body or the X-Idempotency-Key header;
// the header wins when both are present.
func (h *Handler) confirmSession(w http.ResponseWriter, r *http.Request) {
	var req app.ConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.SessionID = sessionID(r)
	if key := r.Header.Get("X-Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	result, err := h.svc.ConfirmSession(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// discardSession handles POST /api/receiving/sessions/{id}/discard.
func (h *Handler) discardSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DiscardSession(r.Context(), sessionID(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	type response struct {
		Discarded bool `json:"discarded"`
	}
	writeJSON(w, response{Discarded: true})
}

// searchCatalog handles GET /api/catalog/search?business_id=N&q=text.
func (h *Handler) searchCatalog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, r, "missing q parameter", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	result, err := h.svc.SearchCatalog(r.Context(), businessID(r), query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// stockLevels handles GET /api/stock?business_id=N.
func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetStockLevels(r.Context(), businessID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// listSuppliers handles GET /api/suppliers?business_id=N.
func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListSuppliers(r.Context(), businessID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// createSupplier handles POST /api/suppliers.
func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req app.CreateSupplierRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateSupplier(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeBody(w, result)
}

// listPurchaseOrders handles GET /api/purchase-orders?business_id=N&status=open.
func (h *Handler) listPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListPurchaseOrders(r.Context(), businessID(r), r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// createPurchaseOrder handles POST /api/purchase-orders.
func (h *Handler) createPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePurchaseOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreatePurchaseOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeBody(w, result)
}

// getPurchaseOrder handles GET /api/purchase-orders/{id}?business_id=N.
func (h *Handler) getPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := urlInt(r, "id")
	if err != nil {
		writeError(w, r, "invalid order id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	result, err := h.svc.GetPurchaseOrder(r.Context(), businessID(r), orderID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
