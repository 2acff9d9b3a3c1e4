package scraper

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

type PageStatus int

const (
	// PageOK is a fetched document with at least one table.
	PageOK PageStatus = iota
	// PageEmpty is a fetched document without tables.
	PageEmpty
	// PageError is a failed fetch or an unparseable body.
	PageError
)

func (s PageStatus) String() string {
	switch s {
	case PageOK:
		return "ok"
	case PageEmpty:
		return "empty"
	case PageError:
		return "error"
	default:
		return fmt.Sprintf("PageStatus(%d)", int(s))
	}
}

// Page is the outcome of loading one result page. Extractors return empty
// collections for any status other than PageOK; callers inspect Status and
// Err to tell a failed fetch from a page with no rows.
type Page struct {
	URL    string
	Status PageStatus
	Doc    *goquery.Document
	Err    error
}

// NewPage classifies a fetch outcome. fetchErr takes precedence over body.
func NewPage(url string, body []byte, fetchErr error) Page {
	if fetchErr != nil {
		return Page{URL: url, Status: PageError, Err: fetchErr}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{URL: url, Status: PageError, Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}

	if doc.Find("table").Length() == 0 {
		return Page{URL: url, Status: PageEmpty, Doc: doc}
	}
	return Page{URL: url, Status: PageOK, Doc: doc}
}

func (p Page) OK() bool {
	return p.Status == PageOK && p.Doc != nil
}

// RowShapeError reports a table row with fewer cells than the layout needs.
type RowShapeError struct {
	URL   string
	Table int
	Row   int
	Cells int
	Want  int
}

func (e *RowShapeError) Error() string {
	return fmt.Sprintf("table %d row %d of %s has %d cells, want at least %d", e.Table, e.Row, e.URL, e.Cells, e.Want)
}

// MissingFieldError reports a value the page layout should have provided.
type MissingFieldError struct {
	URL   string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s not found on %s", e.Field, e.URL)
}
