package synthesis

import (
	"fmt"
	"strings"
)

// summaryClauses is the auditable category-to-sentence table for the
// executive summary, in fixed emission order. Sentiment and unrecognized
// tools contribute no clause but still count toward the total.
var summaryClauses = []struct {
	category Category
	clause   string
}{
	{CategoryQA, "A direct answer has been provided based on available knowledge. "},
	{CategoryEncyclopedia, "Background information has been retrieved from Wikipedia. "},
	{CategoryPapers, "Academic research papers have been identified and summarized. "},
	{CategoryNews, "Recent news articles have been analyzed. "},
}

// ExecutiveSummary builds a short digest of which sources produced the
// answer. It is independent of Synthesize and reads only tool identity
// and status, never output content. Deterministic for identical inputs.
func ExecutiveSummary(query string, results []ToolResultRecord) string {
	present := make(map[Category]bool)
	total := 0
	for _, r := range results {
		if !r.Succeeded() {
			continue
		}
		total++
		present[categoryOf(r.Tool)] = true
	}
	if total == 0 {
		return "No results could be generated for this query."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Regarding **%s**: ", query)
	for _, c := range summaryClauses {
		if present[c.category] {
			b.WriteString(c.clause)
		}
	}
	fmt.Fprintf(&b, "Total of %d information sources consulted.", total)
	return b.String()
}

// SuccessCount reports how many records succeeded, duplicates and
// unrecognized tools included. It matches the total the executive
// summary states.
func SuccessCount(results []ToolResultRecord) int {
	n := 0
	for _, r := range results {
		if r.Succeeded() {
			n++
		}
	}
	return n
}
