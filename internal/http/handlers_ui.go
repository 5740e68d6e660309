package http

import (
	"errors"
	"html/template"
	"net/http"
	"time"

	"luxstock/internal/core"
	"luxstock/internal/log"
)

const (
	viewMonthly = "monthly"
	viewYearly  = "yearly"
)

var templateFuncs = template.FuncMap{
	"currency":    formatCurrency,
	"statusClass": statusClass,
}

// selection is the period and view mode chosen on the page.
type selection struct {
	Year  int
	Month int
	Mode  string
}

func (s selection) Yearly() bool { return s.Mode == viewYearly }

func (s selection) Period() core.Period {
	if s.Yearly() {
		return core.YearPeriod(s.Year)
	}
	return core.MonthPeriod(s.Year, s.Month)
}

// parseSelection reads year, month and view. Unlike the JSON API the page
// always keeps a month selected so the toggle can switch back to it.
func parseSelection(r *http.Request, now time.Time) (selection, error) {
	params, err := ParsePeriodParams(r.URL.Query(), now)
	if err != nil {
		return selection{}, err
	}
	sel := selection{Year: params.Year, Month: params.Month, Mode: viewMonthly}
	if sel.Month == 0 {
		sel.Month = int(now.Month())
	}
	switch v := r.URL.Query().Get("view"); v {
	case "", viewMonthly:
	case viewYearly:
		sel.Mode = viewYearly
	default:
		return selection{}, errors.New("view must be monthly or yearly")
	}
	return sel, nil
}

type monthOption struct {
	Value    int
	Name     string
	Selected bool
}

type pageData struct {
	selection
	Months []monthOption
}

func newPageData(sel selection) pageData {
	d := pageData{selection: sel}
	for m := 1; m <= 12; m++ {
		d.Months = append(d.Months, monthOption{Value: m, Name: time.Month(m).String(), Selected: m == sel.Month})
	}
	return d
}

type tableData struct {
	selection
	Label      string
	View       core.View
	YearTotals *core.Totals
	Breakdown  []core.MonthTotals
}

// handleInventoryPartial renders the inventory table with its summary cards.
func (s *Server) handleInventoryPartial(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError("GET").Write(w)
		return
	}
	sel, err := parseSelection(r, s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if s.templates == nil {
		InternalServerError("Templates not loaded").Write(w)
		return
	}

	data := tableData{selection: sel, Label: sel.Period().Label()}
	if sel.Yearly() {
		data.View, err = s.inventory.YearlyView(r.Context(), sel.Year)
		data.Breakdown = core.MonthlyBreakdown(data.View.Items)
	} else {
		var yearly core.View
		data.View, yearly, err = s.inventory.Dashboard(r.Context(), sel.Year, sel.Month)
		data.YearTotals = &yearly.Totals
	}
	if err != nil {
		s.uiFail(w, r, err, log.OpList, "Failed to load inventory")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "inventory_table.html", data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Inventory template execution failed",
			log.NewFields().WithComponent(log.ComponentTemplate).WithError(err).
				WithPeriod(sel.Year, sel.Period().Month, sel.Period().Key()).ToSlice()...)
	}
}

func (s *Server) handleCreateItemForm(w http.ResponseWriter, r *http.Request) {
	if resp := requirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	item, err := s.inventory.CreateItem(r.Context(), NewItemFromBody(p, s.now()))
	if err != nil {
		s.uiFail(w, r, err, log.OpCreate, "Failed to save item")
		return
	}

	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerInventoryChanged(item.Period()).
		TriggerFormReset().
		TriggerSuccessNotification(item.ItemName + " added to " + item.Period().Label()).
		Write(w)
}

// handleUpdateItemForm applies inline edits; only the fields sent change.
func (s *Server) handleUpdateItemForm(w http.ResponseWriter, r *http.Request) {
	if resp := requirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	id := p.Get("id")
	if id == "" {
		BadRequestError("Item ID is required").Write(w)
		return
	}

	item, err := s.inventory.UpdateItem(r.Context(), id, PatchFromBody(p))
	if err != nil {
		s.uiFail(w, r, err, log.OpUpdate, "Failed to update item")
		return
	}

	NewHTMXResponse().
		TriggerInventoryChanged(item.Period()).
		TriggerSuccessNotification(item.ItemName + " updated").
		Write(w)
}

func (s *Server) handleDeleteItemForm(w http.ResponseWriter, r *http.Request) {
	if resp := requirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	id := p.Get("id")
	if id == "" {
		BadRequestError("Item ID is required").Write(w)
		return
	}

	if err := s.inventory.DeleteItem(r.Context(), id); err != nil {
		s.uiFail(w, r, err, log.OpDelete, "Failed to delete item")
		return
	}

	NewHTMXResponse().
		Trigger(EventInventoryChanged, map[string]any{}).
		TriggerSuccessNotification("Item deleted").
		Write(w)
}

func requirePOST(r *http.Request) *HTMXResponseBuilder {
	if r.Method != http.MethodPost {
		return MethodNotAllowedError(http.MethodPost)
	}
	return nil
}

func (s *Server) uiFail(w http.ResponseWriter, r *http.Request, err error, op, serverMsg string) {
	status := statusForError(err)
	switch status {
	case http.StatusNotFound:
		NotFoundError("Item not found").Write(w)
	case http.StatusInternalServerError:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Inventory UI request failed",
			log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
		InternalServerError(serverMsg).Write(w)
	default:
		ErrorResponse(status, validationMessage(err)).Write(w)
	}
}
