package synthesis

import (
	"fmt"
	"strings"
)

// paperDemoNotice is emitted when the papers tool served placeholder
// data instead of live results. No paper-specific facts are claimed.
const paperDemoNotice = `Based on the academic research related to **"%s"**, several important papers have been published:

**Research Themes:**
- The field shows active research with multiple recent publications
- Key areas of focus include theoretical foundations and practical applications
- Current work explores novel approaches and methodologies

**Note:** This is a demonstration of the ArXiv integration. In a live system with a valid ArXiv API connection, you would see actual paper titles, authors, abstracts, and publication details from the research database.

To access real academic papers, ensure:
1. Internet connectivity is available
2. The ArXiv API is accessible
3. Your query matches indexed research topics`

const noNewsNotice = "No recent news articles were found specifically about %s. This could mean:\n- The topic is highly specialized\n- No major news coverage in recent days\n- Try a broader search term for more results"

// synthesizePapers condenses the papers tool output to a bulleted list
// of the lines that name a paper. Zero matching lines leaves just the
// intro line.
func synthesizePapers(query, output string) string {
	if isPlaceholderPaperResponse(output) {
		return fmt.Sprintf(paperDemoNotice, query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found relevant academic research on **%s**:\n\n", query)
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, paperLinePrefix) {
			b.WriteString("- " + trimmed + "\n")
		}
	}
	return b.String()
}

// synthesizeNews condenses the news tool output to bulleted article
// titles, or explains the absence of coverage.
func synthesizeNews(query, output string) string {
	if isNoNewsResponse(output) {
		return fmt.Sprintf(noNewsNotice, query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Recent news coverage on **%s**:\n\n", query)
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, newsArticleMarker) || strings.Contains(line, newsTitleMarker) {
			b.WriteString("- " + strings.TrimSpace(line) + "\n")
		}
	}
	return b.String()
}

// keyInsights emits one confirmation line per recognized category with a
// successful output. Presence only: the output values are never read.
func keyInsights(query string, outputs map[string]OutputValue) string {
	present := categoriesPresent(outputs)

	var insights []string
	if present[CategoryEncyclopedia] {
		insights = append(insights, fmt.Sprintf("✓ **Foundational knowledge** about %s has been retrieved from Wikipedia", query))
	}
	if present[CategoryPapers] {
		insights = append(insights, "✓ **Academic research papers** have been identified and summarized")
	}
	if present[CategoryNews] {
		insights = append(insights, "✓ **Current news** and recent developments have been analyzed")
	}
	if present[CategorySentiment] {
		insights = append(insights, "✓ **Sentiment analysis** provides insights into public perception")
	}
	if present[CategoryQA] {
		insights = append(insights, "✓ **Direct answer** has been generated based on available knowledge")
	}

	if len(insights) == 0 {
		return fmt.Sprintf("Based on the available information, here's what we know about **%s**: The system has gathered relevant data from multiple sources to provide you with a comprehensive overview.", query)
	}

	var b strings.Builder
	b.WriteString("**Information Sources:**\n")
	b.WriteString(strings.Join(insights, "\n"))
	fmt.Fprintf(&b, "\n\nThis comprehensive analysis of **%s** combines information from multiple authoritative sources to give you a complete picture.", query)
	return b.String()
}
