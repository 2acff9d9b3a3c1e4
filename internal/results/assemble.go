package results

// MissingVotes is written for a schema party absent from a precinct page.
const MissingVotes = "0"

// VoteTally maps party name to vote text for one precinct.
type VoteTally map[string]string

// NewVoteTally folds votes in order; a repeated party keeps its last value.
func NewVoteTally(votes []Vote) VoteTally {
	tally := make(VoteTally, len(votes))
	for _, v := range votes {
		tally[v.Party] = v.Votes
	}
	return tally
}

// Get returns the votes for party or MissingVotes.
func (t VoteTally) Get(party string) string {
	if votes, ok := t[party]; ok {
		return votes
	}
	return MissingVotes
}

// AlignPrecincts zips the independently extracted codes, names and result
// URLs into one ref per precinct. The URL list is authoritative; codes and
// names must have exactly as many entries.
func AlignPrecincts(codes, names, urls []string) ([]PrecinctRef, error) {
	if len(codes) != len(urls) {
		return nil, &AlignmentError{List: "codes", Index: -1, Length: len(codes), Expected: len(urls)}
	}
	if len(names) != len(urls) {
		return nil, &AlignmentError{List: "names", Index: -1, Length: len(names), Expected: len(urls)}
	}

	refs := make([]PrecinctRef, len(urls))
	for i, u := range urls {
		refs[i] = PrecinctRef{Code: codes[i], Name: names[i], ResultURL: u}
	}
	return refs, nil
}

// Assemble builds the output row of one precinct.
func Assemble(ref PrecinctRef, summary PrecinctSummary, tally VoteTally, schema PartySchema) OutputRow {
	votes := make([]string, len(schema))
	for i, party := range schema {
		votes[i] = tally.Get(party)
	}
	return OutputRow{
		Code:     ref.Code,
		Location: ref.Name,
		Summary:  summary,
		Votes:    votes,
	}
}

// AssembleRows builds one row per code from parallel lists. Any list shorter
// than codes yields an *AlignmentError naming the first missing index.
// It is the batch form for callers holding positional lists; the pipeline
// assembles row by row with Assemble after AlignPrecincts.
func AssembleRows(codes, names []string, summaries []PrecinctSummary, tallies []VoteTally, schema PartySchema) ([]OutputRow, error) {
	rows := make([]OutputRow, 0, len(codes))
	for i, code := range codes {
		switch {
		case i >= len(names):
			return nil, &AlignmentError{List: "names", Index: i, Length: len(names)}
		case i >= len(summaries):
			return nil, &AlignmentError{List: "summaries", Index: i, Length: len(summaries)}
		case i >= len(tallies):
			return nil, &AlignmentError{List: "tallies", Index: i, Length: len(tallies)}
		}
		ref := PrecinctRef{Code: code, Name: names[i]}
		rows = append(rows, Assemble(ref, summaries[i], tallies[i], schema))
	}
	return rows, nil
}
