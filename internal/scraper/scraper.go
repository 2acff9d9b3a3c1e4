package scraper

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"elections-scraper/internal/config"
	"elections-scraper/internal/normalize"
	"elections-scraper/internal/results"
)

// headerArtifact is the processed-precinct counter that shares the party
// name column on result pages.
const headerArtifact = "1"

var precinctCode = regexp.MustCompile(`^\d{6}$`)

// Extractor reads precinct data from index and result pages by cell position.
type Extractor struct {
	layout config.LayoutConfig
	norm   *normalize.Normalizer
}

func NewExtractor(layout config.LayoutConfig, norm *normalize.Normalizer) *Extractor {
	return &Extractor{
		layout: layout,
		norm:   norm,
	}
}

// DiscoverLinks returns baseURL+href for every anchor inside a table whose
// text is a six-digit precinct code, in document order, duplicates included.
func (e *Extractor) DiscoverLinks(p Page, baseURL string) []string {
	if !p.OK() {
		return nil
	}

	var links []string
	p.Doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		table.Find("a").Each(func(_ int, a *goquery.Selection) {
			if !precinctCode.MatchString(normalize.Strip(a.Text())) {
				return
			}
			href, exists := a.Attr("href")
			if !exists || href == "" {
				return
			}
			links = append(links, baseURL+href)
		})
	})
	return links
}

// VillageCodes reads the code column of every index row.
func (e *Extractor) VillageCodes(p Page) []string {
	return e.column(p, e.layout.CodeCol)
}

// VillageNames reads the name column of every index row.
func (e *Extractor) VillageNames(p Page) []string {
	return e.column(p, e.layout.NameCol)
}

func (e *Extractor) column(p Page, col int) []string {
	if !p.OK() {
		return nil
	}

	var values []string
	p.Doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := cellTexts(row)
		if len(cells) <= col {
			return
		}
		if value := cells[col]; !normalize.IsPlaceholder(value) {
			values = append(values, value)
		}
	})
	return values
}

// PartyNames builds the party schema from a result page. A repeated name keeps
// its first position. Running it twice on the same page yields the same order.
func (e *Extractor) PartyNames(p Page) results.PartySchema {
	if !p.OK() {
		return nil
	}

	var schema results.PartySchema
	seen := make(map[string]struct{})
	col := e.layout.PartyNameCol
	p.Doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := cellTexts(row)
		if len(cells) <= col {
			return
		}
		name := cells[col]
		if normalize.IsPlaceholder(name) || name == headerArtifact {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		schema = append(schema, name)
	})
	return schema
}

// PartyVotes reads (party, votes) pairs from the vote tables of a result
// page. Order and repeated parties are preserved.
func (e *Extractor) PartyVotes(p Page) ([]results.Vote, error) {
	if !p.OK() {
		return nil, nil
	}

	tables := p.Doc.Find("table")
	from, to := clamp(e.layout.VoteTablesFrom, tables.Length()), clamp(e.layout.VoteTablesTo, tables.Length())

	var votes []results.Vote
	for t := from; t < to; t++ {
		rows := tables.Eq(t).Find("tr")
		for r := 0; r < rows.Length(); r++ {
			cells := cellTexts(rows.Eq(r))
			if len(cells) <= e.layout.PartyNameCol {
				continue
			}
			party := cells[e.layout.PartyNameCol]
			if normalize.IsPlaceholder(party) {
				continue
			}
			if len(cells) <= e.layout.VotesCol {
				return nil, &RowShapeError{URL: p.URL, Table: t, Row: r, Cells: len(cells), Want: e.layout.VotesCol + 1}
			}
			votes = append(votes, results.Vote{Party: party, Votes: cells[e.layout.VotesCol]})
		}
	}
	return votes, nil
}

// Summary reads registered voters, issued envelopes and valid votes from the
// summary table. Every qualifying row overwrites the previous capture, so the
// last matching row wins.
func (e *Extractor) Summary(p Page) (results.PrecinctSummary, error) {
	var summary results.PrecinctSummary
	if !p.OK() {
		return summary, &MissingFieldError{URL: p.URL, Field: "summary table"}
	}

	tables := p.Doc.Find("table")
	if e.layout.SummaryTable >= tables.Length() {
		return summary, &MissingFieldError{URL: p.URL, Field: "summary table"}
	}

	var haveRegistered, haveEnvelopes, haveValid bool
	tables.Eq(e.layout.SummaryTable).Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := rawCellTexts(row)
		if len(cells) > e.layout.EnvelopesCol {
			summary.Envelopes = e.norm.Cell(cells[e.layout.EnvelopesCol])
			haveEnvelopes = true
		}
		if len(cells) > e.layout.RegisteredCol {
			summary.Registered = e.norm.Cell(cells[e.layout.RegisteredCol])
			haveRegistered = true
		}
		if len(cells) > e.layout.ValidCol {
			summary.ValidTotal = e.norm.Cell(cells[e.layout.ValidCol])
			haveValid = true
		}
	})

	switch {
	case !haveRegistered:
		return summary, &MissingFieldError{URL: p.URL, Field: "registered voters"}
	case !haveEnvelopes:
		return summary, &MissingFieldError{URL: p.URL, Field: "issued envelopes"}
	case !haveValid:
		return summary, &MissingFieldError{URL: p.URL, Field: "valid votes"}
	}
	return summary, nil
}

func rawCellTexts(row *goquery.Selection) []string {
	cells := row.Find("td")
	texts := make([]string, cells.Length())
	cells.Each(func(i int, cell *goquery.Selection) {
		texts[i] = cell.Text()
	})
	return texts
}

func cellTexts(row *goquery.Selection) []string {
	texts := rawCellTexts(row)
	for i, text := range texts {
		texts[i] = normalize.Strip(text)
	}
	return texts
}

func clamp(i, n int) int {
	if i > n {
		return n
	}
	return i
}
