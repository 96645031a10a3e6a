package synthesis

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Status of a single tool invocation as reported by the planner.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Recognized tool identifiers. The set is open: the planner may report
// tools this package has no special handling for, and those still count
// as consulted sources.
const (
	ToolQAEngine  = "qa_engine"
	ToolWikipedia = "wikipedia_search"
	ToolArxiv     = "arxiv_summarizer"
	ToolNews      = "news_fetcher"
	ToolSentiment = "sentiment_analyzer"
)

// Category buckets tool identifiers for section routing and summary
// clauses. Unrecognized identifiers map to CategoryOther.
type Category int

const (
	CategoryOther Category = iota
	CategoryQA
	CategoryEncyclopedia
	CategoryPapers
	CategoryNews
	CategorySentiment
)

func (c Category) String() string {
	switch c {
	case CategoryQA:
		return "qa"
	case CategoryEncyclopedia:
		return "encyclopedia"
	case CategoryPapers:
		return "papers"
	case CategoryNews:
		return "news"
	case CategorySentiment:
		return "sentiment"
	default:
		return "other"
	}
}

// categoryOf is the single place tool identifiers are interpreted.
func categoryOf(tool string) Category {
	switch tool {
	case ToolQAEngine:
		return CategoryQA
	case ToolWikipedia:
		return CategoryEncyclopedia
	case ToolArxiv:
		return CategoryPapers
	case ToolNews:
		return CategoryNews
	case ToolSentiment:
		return CategorySentiment
	default:
		return CategoryOther
	}
}

// OutputKind discriminates the three shapes a tool output arrives in.
type OutputKind int

const (
	OutputText OutputKind = iota
	OutputMapping
	OutputOther
)

// OutputValue is one tool output as received from the planner: free-form
// text, a structured mapping, or anything else. Coercion to text is
// defined for text and "other" values only; mappings have no text form.
type OutputValue struct {
	Kind    OutputKind
	Text    string
	Mapping map[string]interface{}
	Raw     interface{}
}

func TextOutput(s string) OutputValue { return OutputValue{Kind: OutputText, Text: s} }

func MappingOutput(m map[string]interface{}) OutputValue {
	return OutputValue{Kind: OutputMapping, Mapping: m}
}

func RawOutput(v interface{}) OutputValue { return OutputValue{Kind: OutputOther, Raw: v} }

// text returns the textual form used for gating, rendering and resource
// scanning. ok is false for mapping outputs.
func (v OutputValue) text() (string, bool) {
	switch v.Kind {
	case OutputText:
		return v.Text, true
	case OutputOther:
		return fmt.Sprintf("%v", v.Raw), true
	default:
		return "", false
	}
}

// UnmarshalJSON keeps the wire union intact: a JSON string stays text, a
// JSON object stays a mapping, everything else is carried as raw.
func (v *OutputValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*v = OutputValue{Kind: OutputOther}
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		*v = OutputValue{Kind: OutputText, Text: s}
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(trimmed, &m); err == nil {
		*v = OutputValue{Kind: OutputMapping, Mapping: m}
		return nil
	}
	var raw interface{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("tool output: %w", err)
	}
	*v = OutputValue{Kind: OutputOther, Raw: raw}
	return nil
}

func (v OutputValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case OutputText:
		return json.Marshal(v.Text)
	case OutputMapping:
		return json.Marshal(v.Mapping)
	default:
		return json.Marshal(v.Raw)
	}
}

// ToolResultRecord is one outcome of one tool invocation, produced by
// the planner and consumed once per synthesis call.
type ToolResultRecord struct {
	Tool   string      `json:"tool"`
	Status Status      `json:"status"`
	Output OutputValue `json:"output"`
}

func (r ToolResultRecord) Succeeded() bool { return r.Status == StatusSuccess }

// PlanDescriptor is the planner's record of which tools it intended to
// run. Synthesis never inspects it; it is threaded through for callers
// that echo it back.
type PlanDescriptor = json.RawMessage

// ResourceKind classifies a generated artifact inferred from tool
// output text.
type ResourceKind int

const (
	ResourceChart ResourceKind = iota
	ResourceDocument
)

func (k ResourceKind) String() string {
	if k == ResourceChart {
		return "chart"
	}
	return "document"
}

// GeneratedResource is a chart or document whose creation was inferred
// from a tool's output. Recomputed per synthesis call, never persisted.
type GeneratedResource struct {
	Kind        ResourceKind
	Description string
}
