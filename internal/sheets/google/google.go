// Package google mirrors inventory months into a Google Spreadsheet, one tab
// per month.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"luxstock/internal/core"
	"luxstock/internal/sheets"
)

var _ sheets.MonthWriter = (*Client)(nil)

var header = []any{"Item Name", "Unit Price", "Quantity In Hand", "Quantity Sold", "Inventory Value", "Sales Value", "Status"}

// Client writes month views through the Sheets v4 API.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// Credentials selects the service account used to talk to the Sheets API.
// JSON takes precedence over File; with neither set the application default
// credentials are used.
type Credentials struct {
	JSON string
	File string
}

// New builds a client for spreadsheetID.
func New(ctx context.Context, spreadsheetID string, creds Credentials, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, creds, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func newSheetsService(ctx context.Context, creds Credentials, extra ...goption.ClientOption) (*gsheet.Service, error) {
	opts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}

	data := []byte(creds.JSON)
	if len(data) == 0 && creds.File != "" {
		b, err := os.ReadFile(creds.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		data = b
	}
	if len(data) > 0 {
		opts = append(opts, goption.WithCredentialsJSON(data))
	}
	opts = append(opts, extra...)

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// WriteMonth replaces the tab named after the view's period with a header,
// one row per item and a totals row. The tab is created when missing.
func (c *Client) WriteMonth(ctx context.Context, view core.View) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if view.Period.IsYearly() {
		return fmt.Errorf("write month %s: %w", view.Period.Key(), core.ErrInvalidMonth)
	}

	tab := view.Period.Label()
	if err := c.ensureTab(ctx, tab); err != nil {
		return err
	}

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, quoteTab(tab), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear tab %q: %w", tab, err)
	}

	vr := &gsheet.ValueRange{Values: monthRows(view)}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, quoteTab(tab)+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write tab %q: %w", tab, err)
	}

	slog.DebugContext(ctx, "Month mirrored to sheet", "tab", tab, "items", len(view.Items))
	return nil
}

func (c *Client) ensureTab(ctx context.Context, tab string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == tab {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %q: %w", tab, err)
	}
	slog.InfoContext(ctx, "Created sheet tab", "tab", tab)
	return nil
}

// monthRows lays out a view as sheet rows.
func monthRows(view core.View) [][]any {
	rows := make([][]any, 0, len(view.Items)+3)
	rows = append(rows, header)
	for _, it := range view.Items {
		rows = append(rows, []any{
			it.ItemName,
			money(it.UnitPrice),
			it.QuantityInHand,
			it.QuantitySold,
			money(it.InventoryValue),
			money(it.SalesValue),
			string(it.Status),
		})
	}
	rows = append(rows,
		[]any{},
		[]any{"Total", "", "", "", money(view.Totals.InventoryValue), money(view.Totals.SalesValue), fmt.Sprintf("%d items", view.Totals.Count)},
	)
	return rows
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// quoteTab escapes a tab title for use in A1 notation.
func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}
