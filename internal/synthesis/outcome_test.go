package synthesis

import (
	"testing"
)

func TestOutputsByTool(t *testing.T) {
	results := []ToolResultRecord{
		success(ToolQAEngine, "a real answer"),
		success(ToolWikipedia, "Error: page moved"),
		failure(ToolNews, "fetched but marked failed"),
		{Tool: ToolArxiv, Status: StatusSuccess, Output: MappingOutput(map[string]interface{}{"papers": 3})},
		{Tool: "calculator", Status: StatusSuccess, Output: RawOutput(42.0)},
		success("", ""),
	}

	outputs := outputsByTool(results)

	if len(outputs) != 3 {
		t.Fatalf("got %d outputs, want 3: %v", len(outputs), outputs)
	}
	if v, ok := outputs[ToolQAEngine]; !ok || v.Text != "a real answer" {
		t.Error("plain text success missing")
	}
	if _, ok := outputs[ToolWikipedia]; ok {
		t.Error("error-prefixed text must be excluded despite success status")
	}
	if _, ok := outputs[ToolNews]; ok {
		t.Error("failed records must be excluded")
	}
	if v, ok := outputs[ToolArxiv]; !ok || v.Kind != OutputMapping {
		t.Error("mapping output must be kept as a mapping")
	}
	if v, ok := outputs["calculator"]; !ok || v.Kind != OutputText || v.Text != "42" {
		t.Errorf("other output must be coerced to text, got %+v", v)
	}
}

func TestOutputsByToolMappingSkipsErrorCheck(t *testing.T) {
	// The error-prefix check applies to text only.
	results := []ToolResultRecord{
		{Tool: ToolArxiv, Status: StatusSuccess, Output: MappingOutput(map[string]interface{}{"Error:": "looks scary"})},
	}
	if got := outputsByTool(results); len(got) != 1 {
		t.Errorf("mapping output dropped, want kept: %v", got)
	}
}

func TestCategoryText(t *testing.T) {
	outputs := map[string]OutputValue{
		ToolQAEngine: TextOutput("answer"),
		ToolArxiv:    MappingOutput(map[string]interface{}{"papers": 3}),
	}

	if text, ok := categoryText(outputs, CategoryQA); !ok || text != "answer" {
		t.Errorf("categoryText(qa) = %q, %v", text, ok)
	}
	if _, ok := categoryText(outputs, CategoryPapers); ok {
		t.Error("mapping output must not present a text form")
	}
	if _, ok := categoryText(outputs, CategoryNews); ok {
		t.Error("absent category must not be found")
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		tool string
		want Category
	}{
		{ToolQAEngine, CategoryQA},
		{ToolWikipedia, CategoryEncyclopedia},
		{ToolArxiv, CategoryPapers},
		{ToolNews, CategoryNews},
		{ToolSentiment, CategorySentiment},
		{"pdf_parser", CategoryOther},
		{"", CategoryOther},
	}
	for _, tt := range tests {
		if got := categoryOf(tt.tool); got != tt.want {
			t.Errorf("categoryOf(%q) = %v, want %v", tt.tool, got, tt.want)
		}
	}
}
