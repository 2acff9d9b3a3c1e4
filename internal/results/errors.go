package results

import "fmt"

// AlignmentError reports positional lists that do not line up, e.g. fewer
// village names than discovered precinct links.
type AlignmentError struct {
	List     string
	Index    int
	Length   int
	Expected int
}

func (e *AlignmentError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("alignment error: %s has %d entries, no entry for precinct %d", e.List, e.Length, e.Index)
	}
	return fmt.Sprintf("alignment error: %s has %d entries, expected %d", e.List, e.Length, e.Expected)
}
