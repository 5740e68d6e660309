// Package http serves the inventory JSON API, the HTMX pages and the
// operational endpoints.
//
// This file holds the shared request parsing: period parameters from the
// query string and item fields from JSON or form-encoded bodies.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"luxstock/internal/core"
)

const maxBodyBytes = 1 << 20

var (
	errBadYear  = errors.New("year must be a number")
	errBadMonth = errors.New("month must be a number between 1 and 12")
)

// PeriodParams is the year/month selection of a request. Month is zero
// when the request asks for the whole year.
type PeriodParams struct {
	Year  int
	Month int
}

func (p PeriodParams) Period() core.Period {
	return core.Period{Year: p.Year, Month: p.Month}
}

// ParsePeriodParams reads year and month from the query. A missing year
// is the current year and a missing month selects the yearly view.
// Present but malformed values are errors.
func ParsePeriodParams(query url.Values, now time.Time) (PeriodParams, error) {
	params := PeriodParams{Year: now.Year()}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return PeriodParams{}, errBadYear
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return PeriodParams{}, errBadMonth
		}
		params.Month = m
	}
	return params, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most 1 MiB of the request body once.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was sent at all, even with an empty value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		return ok && v != nil
	}
	if p.formData != nil {
		return p.formData.Has(key)
	}
	return false
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// NewItemFromBody builds a creation request. Numbers are coerced, so
// malformed prices and quantities become zero; a missing year or month
// defaults to now.
func NewItemFromBody(p *RequestBodyParser, now time.Time) core.NewItem {
	n := core.NewItem{
		ItemName:       p.Get("itemName"),
		UnitPrice:      core.ParsePrice(p.Get("unitPrice")),
		QuantityInHand: core.ParseQuantity(p.Get("quantityInHand")),
		QuantitySold:   core.ParseQuantity(p.Get("quantitySold")),
		Year:           now.Year(),
		Month:          int(now.Month()),
	}
	if p.Has("year") {
		n.Year = atoiOrZero(p.Get("year"))
	}
	if p.Has("month") {
		n.Month = atoiOrZero(p.Get("month"))
	}
	return n
}

// PatchFromBody builds a partial update from the keys present in the body.
func PatchFromBody(p *RequestBodyParser) core.ItemPatch {
	var patch core.ItemPatch
	if p.Has("itemName") {
		name := p.Get("itemName")
		patch.ItemName = &name
	}
	if p.Has("unitPrice") {
		price := core.ParsePrice(p.Get("unitPrice"))
		patch.UnitPrice = &price
	}
	if p.Has("quantityInHand") {
		q := core.ParseQuantity(p.Get("quantityInHand"))
		patch.QuantityInHand = &q
	}
	if p.Has("quantitySold") {
		q := core.ParseQuantity(p.Get("quantitySold"))
		patch.QuantitySold = &q
	}
	if p.Has("year") {
		y := atoiOrZero(p.Get("year"))
		patch.Year = &y
	}
	if p.Has("month") {
		m := atoiOrZero(p.Get("month"))
		patch.Month = &m
	}
	return patch
}

// atoiOrZero maps unparsable or out-of-range input to zero so that
// validation rejects it.
func atoiOrZero(s string) int {
	n, ok := core.ParseWholeNumber(s)
	if !ok {
		return 0
	}
	return n
}

// sanitizeInput removes control characters except tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
