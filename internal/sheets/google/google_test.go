package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"luxstock/internal/core"
)

func testView() core.View {
	return core.NewView(core.MonthPeriod(2025, 3), []core.RawItem{
		{ID: "a", ItemName: "Chronograph", UnitPrice: decimal.RequireFromString("1250.50"), QuantityInHand: 4, QuantitySold: 1, Year: 2025, Month: 3},
		{ID: "b", ItemName: "Clutch", UnitPrice: decimal.RequireFromString("300"), QuantityInHand: 0, QuantitySold: 2, Year: 2025, Month: 3},
	})
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", Credentials{})
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("expected missing spreadsheet id error, got %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), "sheet", Credentials{File: "/nonexistent/sa.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestWriteMonth_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	err := c.WriteMonth(context.Background(), testView())
	if err == nil || err.Error() != "sheets service not initialized" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMonthRows(t *testing.T) {
	rows := monthRows(testView())
	if len(rows) != 5 {
		t.Fatalf("expected header, 2 items, spacer and totals; got %d rows", len(rows))
	}
	if rows[0][0] != "Item Name" || len(rows[0]) != 7 {
		t.Errorf("unexpected header: %v", rows[0])
	}

	first := rows[1]
	if first[0] != "Chronograph" || first[1] != 1250.5 || first[4] != 5002.0 || first[6] != "Low Stock" {
		t.Errorf("unexpected item row: %v", first)
	}
	if rows[2][6] != "Out of Stock" {
		t.Errorf("expected out of stock, got %v", rows[2][6])
	}
	if len(rows[3]) != 0 {
		t.Errorf("expected spacer row, got %v", rows[3])
	}

	total := rows[4]
	if total[0] != "Total" || total[4] != 5002.0 || total[5] != 1850.5 || total[6] != "2 items" {
		t.Errorf("unexpected totals row: %v", total)
	}
}

func TestMonthRows_Empty(t *testing.T) {
	rows := monthRows(core.NewView(core.MonthPeriod(2025, 1), nil))
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[2][4] != 0.0 || rows[2][6] != "0 items" {
		t.Errorf("unexpected totals row: %v", rows[2])
	}
}

func TestQuoteTab(t *testing.T) {
	tests := map[string]string{
		"March 2025": "'March 2025'",
		"Bob's":      "'Bob''s'",
	}
	for in, want := range tests {
		if got := quoteTab(in); got != want {
			t.Errorf("quoteTab(%q) = %q, want %q", in, got, want)
		}
	}
}

// fakeSheets records the calls the client makes against the Sheets REST API.
type fakeSheets struct {
	mu       sync.Mutex
	tabs     []string
	added    []string
	cleared  []string
	written  map[string][][]any
	failWith int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != 0 {
		w.WriteHeader(f.failWith)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"boom"}}`))
		return
	}

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-id"):
		ss := gsheet.Spreadsheet{}
		for _, tab := range f.tabs {
			ss.Sheets = append(ss.Sheets, &gsheet.Sheet{Properties: &gsheet.SheetProperties{Title: tab}})
		}
		_ = json.NewEncoder(w).Encode(ss)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.added = append(f.added, rq.AddSheet.Properties.Title)
				f.tabs = append(f.tabs, rq.AddSheet.Properties.Title)
			}
		}
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.cleared = append(f.cleared, path[strings.Index(path, "/values/")+len("/values/"):len(path)-len(":clear")])
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		if f.written == nil {
			f.written = map[string][][]any{}
		}
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		f.written[rng] = vr.Values
		_, _ = w.Write([]byte(`{}`))
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func newFakeClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), "sheet-id", Credentials{},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestWriteMonth_CreatesMissingTab(t *testing.T) {
	fake := &fakeSheets{tabs: []string{"February 2025"}}
	c := newFakeClient(t, fake)

	if err := c.WriteMonth(context.Background(), testView()); err != nil {
		t.Fatalf("write month: %v", err)
	}

	if len(fake.added) != 1 || fake.added[0] != "March 2025" {
		t.Errorf("expected March 2025 tab to be added, got %v", fake.added)
	}
	if len(fake.cleared) != 1 || fake.cleared[0] != "'March 2025'" {
		t.Errorf("expected tab to be cleared, got %v", fake.cleared)
	}
	rows, ok := fake.written["'March 2025'!A1"]
	if !ok {
		t.Fatalf("expected rows written at A1, got %v", fake.written)
	}
	if len(rows) != 5 || rows[1][0] != "Chronograph" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestWriteMonth_ReusesExistingTab(t *testing.T) {
	fake := &fakeSheets{tabs: []string{"March 2025"}}
	c := newFakeClient(t, fake)

	if err := c.WriteMonth(context.Background(), testView()); err != nil {
		t.Fatalf("write month: %v", err)
	}
	if len(fake.added) != 0 {
		t.Errorf("expected no new tab, got %v", fake.added)
	}
}

func TestWriteMonth_RejectsYearlyView(t *testing.T) {
	c := newFakeClient(t, &fakeSheets{})
	err := c.WriteMonth(context.Background(), core.NewView(core.YearPeriod(2025), nil))
	if !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestWriteMonth_APIError(t *testing.T) {
	c := newFakeClient(t, &fakeSheets{failWith: http.StatusInternalServerError})
	err := c.WriteMonth(context.Background(), testView())
	if err == nil || !strings.Contains(err.Error(), "get spreadsheet") {
		t.Fatalf("expected get spreadsheet error, got %v", err)
	}
}
