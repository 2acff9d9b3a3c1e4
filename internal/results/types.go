package results

// PrecinctRef identifies one precinct listed on the index page.
type PrecinctRef struct {
	Code      string
	Name      string
	ResultURL string
}

// PrecinctSummary holds the turnout counts of a precinct as page text.
// Values are not parsed; thousands separators are preserved.
type PrecinctSummary struct {
	Registered string
	Envelopes  string
	ValidTotal string
}

// Vote is one party row of a precinct result page.
type Vote struct {
	Party string
	Votes string
}

// PartySchema is the run-wide ordered list of party names. It fixes the vote
// column order of every output row.
type PartySchema []string

// FixedColumns are the leading output columns before the party columns.
var FixedColumns = []string{"code", "location", "registered", "envelopes", "valid"}

// Header returns the output header: FixedColumns followed by the parties.
func (s PartySchema) Header() []string {
	header := make([]string, 0, len(FixedColumns)+len(s))
	header = append(header, FixedColumns...)
	return append(header, s...)
}

// OutputRow is one assembled precinct. Votes follow PartySchema order.
type OutputRow struct {
	Code     string
	Location string
	Summary  PrecinctSummary
	Votes    []string
}

// Fields flattens the row into len(FixedColumns)+len(Votes) values.
func (r OutputRow) Fields() []string {
	fields := make([]string, 0, len(FixedColumns)+len(r.Votes))
	fields = append(fields,
		r.Code,
		r.Location,
		r.Summary.Registered,
		r.Summary.Envelopes,
		r.Summary.ValidTotal,
	)
	return append(fields, r.Votes...)
}
