package http

import (
	"net/http"

	"luxstock/internal/core"
	"luxstock/internal/log"
)

// handleInventoryAPI serves GET, POST, PATCH and DELETE on /api/inventory.
func (s *Server) handleInventoryAPI(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.apiList(w, r)
	case http.MethodPost:
		s.apiCreate(w, r)
	case http.MethodPatch:
		s.apiUpdate(w, r)
	case http.MethodDelete:
		s.apiDelete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, PATCH, DELETE")
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) apiList(w http.ResponseWriter, r *http.Request) {
	params, err := ParsePeriodParams(r.URL.Query(), s.now())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := s.loadView(r, params.Period())
	if err != nil {
		s.apiFail(w, r, err, log.OpList, "Failed to fetch inventory items")
		return
	}

	if r.URL.Query().Get("summary") == "1" {
		writeJSON(w, http.StatusOK, toSummaryResponse(view))
		return
	}
	writeJSON(w, http.StatusOK, toItemResponses(view.Items))
}

func (s *Server) apiCreate(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := s.inventory.CreateItem(r.Context(), NewItemFromBody(p, s.now()))
	if err != nil {
		s.apiFail(w, r, err, log.OpCreate, "Failed to create inventory item")
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

func (s *Server) apiUpdate(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := p.Get("id")
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "Item ID is required")
		return
	}

	item, err := s.inventory.UpdateItem(r.Context(), id, PatchFromBody(p))
	if err != nil {
		s.apiFail(w, r, err, log.OpUpdate, "Failed to update inventory item")
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (s *Server) apiDelete(w http.ResponseWriter, r *http.Request) {
	id := sanitizeInput(r.URL.Query().Get("id"))
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "Item ID is required")
		return
	}

	if err := s.inventory.DeleteItem(r.Context(), id); err != nil {
		s.apiFail(w, r, err, log.OpDelete, "Failed to delete inventory item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Item deleted successfully"})
}

// loadView returns the monthly or yearly view for period.
func (s *Server) loadView(r *http.Request, period core.Period) (core.View, error) {
	if period.IsYearly() {
		return s.inventory.YearlyView(r.Context(), period.Year)
	}
	return s.inventory.MonthlyView(r.Context(), period.Year, period.Month)
}

// apiFail maps err to a status. Client errors echo the validation message;
// server errors log the cause and return serverMsg.
func (s *Server) apiFail(w http.ResponseWriter, r *http.Request, err error, op, serverMsg string) {
	status := statusForError(err)
	switch status {
	case http.StatusNotFound:
		writeJSONError(w, status, "Item not found")
	case http.StatusInternalServerError:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Inventory API request failed",
			log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
		writeJSONError(w, status, serverMsg)
	default:
		writeJSONError(w, status, validationMessage(err))
	}
}
