// Package pipeline runs one stored workbook through reading, header
// resolution, code narrowing and normalization.
package pipeline

import (
	"errors"

	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/codes"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/header"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/table"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/workbook"
	"github.com/FACorreiaa/maritime-portal/pkg/metrics"
)

// Catalog lookup results reported to metrics
const (
	LookupHit      = "hit"
	LookupMiss     = "miss"
	LookupFallback = "fallback"
)

// Result is everything derived from one workbook
type Result struct {
	Workbook   *workbook.Workbook
	Resolution header.Resolution

	// Keys are the record keys: labels fitted to the data width and made
	// distinct
	Keys []string
	// LabelNote describes a label/data width mismatch, empty otherwise
	LabelNote string
	Units     []string

	Selection codes.Selection
	Records   []table.Record
	Narrowed  []table.Record
}

// DateColumn returns the selected date column, or "" when there is none
func (r *Result) DateColumn() string {
	if i := codes.FindDateColumn(r.Selection.Columns); i >= 0 {
		return r.Selection.Columns[i]
	}
	return ""
}

// Pipeline is safe for concurrent use
type Pipeline struct {
	catalog    *codes.Catalog
	headerRows [3]int
	metrics    *metrics.Metrics
}

// New creates a pipeline over a code catalog
func New(catalog *codes.Catalog, headerRows [3]int, m *metrics.Metrics) *Pipeline {
	return &Pipeline{catalog: catalog, headerRows: headerRows, metrics: m}
}

// Catalog returns the code catalog in use
func (p *Pipeline) Catalog() *codes.Catalog {
	return p.catalog
}

// Run processes the workbook at path. filename is the original upload name
// used for the catalog lookup.
func (p *Pipeline) Run(path, filename, sheet string) (*Result, error) {
	wb, err := workbook.Read(path, workbook.ReadOptions{Sheet: sheet})
	p.recordAttempts(wb, err)
	if err != nil {
		return nil, err
	}

	res := header.Resolve(wb, header.Options{HeaderRows: p.headerRows})
	applied, note := header.Apply(res.Labels, wb.DataWidth())
	keys := header.Disambiguate(applied)

	records := table.Normalize(wb.DataRows(), keys)
	sel := p.catalog.Select(keys, filename)

	switch {
	case !sel.Matched:
		p.metrics.CatalogLookup(LookupMiss)
	case sel.Fallback:
		p.metrics.CatalogLookup(LookupFallback)
	default:
		p.metrics.CatalogLookup(LookupHit)
	}

	return &Result{
		Workbook:   wb,
		Resolution: res,
		Keys:       keys,
		LabelNote:  note,
		Units:      header.Units(keys),
		Selection:  sel,
		Records:    records,
		Narrowed:   table.Narrow(records, sel.Columns),
	}, nil
}

func (p *Pipeline) recordAttempts(wb *workbook.Workbook, err error) {
	if wb != nil {
		for _, a := range wb.Failed {
			p.metrics.EngineAttempt(a.Engine, false)
		}
		p.metrics.EngineAttempt(wb.Engine, true)
		return
	}
	var rerr *workbook.ReadError
	if errors.As(err, &rerr) {
		for _, a := range rerr.Attempts {
			p.metrics.EngineAttempt(a.Engine, false)
		}
	}
}
