package synthesis

import (
	"strings"
	"testing"
)

func TestSynthesizePapersPlaceholder(t *testing.T) {
	output := "Found 3 papers:\n**Sample Paper 1** by A. Author\n**Sample Paper 2** by B. Author"
	got := synthesizePapers("graph theory", output)

	if !strings.Contains(got, `**"graph theory"**`) {
		t.Error("demo notice must quote the query")
	}
	if !strings.Contains(got, "This is a demonstration of the ArXiv integration.") {
		t.Error("demo notice body missing")
	}
	if strings.Contains(got, "- **Sample Paper 1**") {
		t.Error("placeholder output must not be bulleted")
	}
}

func TestSynthesizePapersBullets(t *testing.T) {
	output := "Found 2 papers on the topic:\n" +
		"**Attention Is All You Need** (2017)\n" +
		"some connecting prose\n" +
		"   **Scaling Laws for Neural Language Models** (2020)\n"
	got := synthesizePapers("transformers", output)

	want := "Found relevant academic research on **transformers**:\n\n" +
		"- **Attention Is All You Need** (2017)\n" +
		"- **Scaling Laws for Neural Language Models** (2020)\n"
	if got != want {
		t.Errorf("synthesizePapers() = %q, want %q", got, want)
	}
}

func TestSynthesizePapersNoMatches(t *testing.T) {
	got := synthesizePapers("obscure topic", "Found 0 papers matching the request")
	want := "Found relevant academic research on **obscure topic**:\n\n"
	if got != want {
		t.Errorf("synthesizePapers() = %q, want intro only", got)
	}
}

func TestSynthesizeNewsFallback(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{name: "explicit no-news marker", output: "No recent news found for this query. " + strings.Repeat("x", 100)},
		{name: "under 100 chars", output: strings.Repeat("n", 99)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := synthesizeNews("fusion power", tt.output)
			if !strings.Contains(got, "No recent news articles were found specifically about fusion power.") {
				t.Errorf("missing no-coverage intro, got %q", got)
			}
			if !strings.Contains(got, "- The topic is highly specialized") ||
				!strings.Contains(got, "- No major news coverage in recent days") ||
				!strings.Contains(got, "- Try a broader search term for more results") {
				t.Error("missing one of the three explanations")
			}
		})
	}
}

func TestSynthesizeNewsBullets(t *testing.T) {
	output := strings.Repeat("padding ", 13) + "\n" +
		"**Article 1:** Markets rally on chip news\n" +
		"plain commentary line\n" +
		"  **Title:** New fab announced\n"
	got := synthesizeNews("semiconductors", output)

	want := "Recent news coverage on **semiconductors**:\n\n" +
		"- **Article 1:** Markets rally on chip news\n" +
		"- **Title:** New fab announced\n"
	if got != want {
		t.Errorf("synthesizeNews() = %q, want %q", got, want)
	}
}

func TestKeyInsightsOrdering(t *testing.T) {
	outputs := map[string]OutputValue{
		ToolQAEngine:  TextOutput("answer"),
		ToolSentiment: TextOutput("positive"),
		ToolNews:      TextOutput("news"),
		ToolArxiv:     TextOutput("papers"),
		ToolWikipedia: TextOutput("background"),
	}
	got := keyInsights("ordering", outputs)

	lines := []string{
		"✓ **Foundational knowledge** about ordering has been retrieved from Wikipedia",
		"✓ **Academic research papers** have been identified and summarized",
		"✓ **Current news** and recent developments have been analyzed",
		"✓ **Sentiment analysis** provides insights into public perception",
		"✓ **Direct answer** has been generated based on available knowledge",
	}
	prev := -1
	for _, line := range lines {
		idx := strings.Index(got, line)
		if idx < 0 {
			t.Fatalf("missing insight line %q", line)
		}
		if idx < prev {
			t.Errorf("insight line out of order: %q", line)
		}
		prev = idx
	}
	if !strings.Contains(got, "**Information Sources:**\n") {
		t.Error("missing sources header")
	}
	if !strings.Contains(got, "This comprehensive analysis of **ordering** combines information from multiple authoritative sources to give you a complete picture.") {
		t.Error("missing closing sentence")
	}
}

func TestKeyInsightsSingleCategory(t *testing.T) {
	got := keyInsights("bees", map[string]OutputValue{ToolWikipedia: TextOutput("text")})
	if !strings.Contains(got, "✓ **Foundational knowledge** about bees has been retrieved from Wikipedia") {
		t.Error("missing wikipedia line")
	}
	if strings.Contains(got, "✓ **Direct answer**") {
		t.Error("absent category must not produce a line")
	}
}

func TestKeyInsightsEmpty(t *testing.T) {
	got := keyInsights("nothing", map[string]OutputValue{})
	want := "Based on the available information, here's what we know about **nothing**: The system has gathered relevant data from multiple sources to provide you with a comprehensive overview."
	if got != want {
		t.Errorf("keyInsights() = %q, want generic fallback", got)
	}
}

func TestKeyInsightsUnrecognizedToolOnly(t *testing.T) {
	got := keyInsights("custom", map[string]OutputValue{"custom_tool": TextOutput("data")})
	if !strings.Contains(got, "Based on the available information") {
		t.Error("unrecognized tools alone should yield the generic fallback")
	}
}
