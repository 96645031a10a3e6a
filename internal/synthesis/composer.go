// Package synthesis turns the planner's heterogeneous, partially-failed
// tool results into the user-facing composite answer and a short
// executive summary. Both composers are pure functions of their inputs:
// no I/O, no shared state, safe for concurrent calls.
package synthesis

import (
	"fmt"
	"strings"
)

// noResultsNotice is the only early return: nothing usable survived the
// outcome filter.
const noResultsNotice = "❌ **No results were generated.** The query could not be processed successfully."

const (
	primaryFooter  = "---\n\n✅ **Analysis Complete** | Comprehensive answer generated using AI with supporting research from multiple sources.\n"
	fallbackFooter = "---\n\n✅ **Analysis Complete** | Information gathered from multiple sources and synthesized for your query.\n"
)

// section is one block of the synthesized answer. The composer collects
// sections in order and joins their bodies once at the end, so ordering
// and omission stay testable per section.
type section struct {
	name string
	body string
}

func render(sections []section) string {
	var b strings.Builder
	for _, s := range sections {
		b.WriteString(s.body)
	}
	return b.String()
}

// Synthesize builds the long-form answer for query from the planner's
// tool results. plan is accepted for interface symmetry; composition
// does not depend on it. The result is never empty and never an error:
// total failure produces a fixed notice, and irregular output shapes
// degrade to smaller sections.
func Synthesize(query string, results []ToolResultRecord, plan PlanDescriptor) string {
	_ = plan

	outputs := outputsByTool(results)
	if len(outputs) == 0 {
		return noResultsNotice
	}

	sections := []section{{name: "title", body: fmt.Sprintf("# 📖 Answer to: %s\n\n", query)}}

	if qa, ok := categoryText(outputs, CategoryQA); ok {
		if runeLen(qa) > minSubstantialAnswer && !isQARefusal(qa) {
			sections = append(sections, primarySections(qa, outputs, results)...)
			return render(sections)
		}
		// Short or refusal answers are still worth showing before the
		// multi-section synthesis takes over.
		sections = append(sections, section{name: "quick_answer", body: "## 💡 Quick Answer\n\n" + qa + "\n\n---\n\n"})
	}

	sections = append(sections, fallbackSections(query, outputs, results)...)
	return render(sections)
}

// Strategy labels reported alongside synthesis metrics.
const (
	StrategyQAPrimary    = "qa_primary"
	StrategyMultiSection = "multi_section"
	StrategyNoResults    = "no_results"
)

// StrategyOf reports the composition path Synthesize takes for results,
// without rendering anything.
func StrategyOf(results []ToolResultRecord) string {
	outputs := outputsByTool(results)
	if len(outputs) == 0 {
		return StrategyNoResults
	}
	if qa, ok := categoryText(outputs, CategoryQA); ok && runeLen(qa) > minSubstantialAnswer && !isQARefusal(qa) {
		return StrategyQAPrimary
	}
	return StrategyMultiSection
}

// primarySections renders the QA-primary strategy: the QA text is the
// whole answer, followed by the factual sources that ground it.
func primarySections(qaAnswer string, outputs map[string]OutputValue, results []ToolResultRecord) []section {
	sections := []section{{name: "qa_answer", body: qaAnswer + "\n\n---\n\n"}}

	var b strings.Builder
	b.WriteString("## 📚 Factual Sources Used (Verify Claims Above)\n\n")
	b.WriteString("*The AI answer above is grounded in the following factual sources. Cross-reference to verify accuracy:*\n\n")

	hasSources := false
	if papers, ok := categoryText(outputs, CategoryPapers); ok && runeLen(papers) > minSourceChars {
		b.WriteString("### 🔬 Academic Papers Found\n\n")
		b.WriteString(papers)
		b.WriteString("\n\n")
		hasSources = true
	}
	if wiki, ok := categoryText(outputs, CategoryEncyclopedia); ok && runeLen(wiki) > minSourceChars {
		b.WriteString("### 📖 Wikipedia Background\n\n")
		b.WriteString(collapsibleBackground(wiki))
		hasSources = true
	}
	if news, ok := categoryText(outputs, CategoryNews); ok && runeLen(news) > minSourceChars {
		b.WriteString("### 📰 Recent News Articles\n\n")
		b.WriteString(news)
		b.WriteString("\n\n")
		hasSources = true
	}
	if !hasSources {
		b.WriteString("*Note: This answer is based on the LLM's general knowledge. No specific research papers or news articles were retrieved for verification.*\n\n")
	}
	sections = append(sections, section{name: "sources", body: b.String()})

	if res := scanGeneratedResources(results); len(res) > 0 {
		sections = append(sections, section{name: "resources", body: renderResources(res)})
	}
	sections = append(sections, section{name: "footer", body: primaryFooter})
	return sections
}

// fallbackSections renders the multi-section strategy used when no
// substantial QA answer exists.
func fallbackSections(query string, outputs map[string]OutputValue, results []ToolResultRecord) []section {
	var sections []section
	hasContent := false

	if wiki, ok := categoryText(outputs, CategoryEncyclopedia); ok && runeLen(wiki) > minSourceChars {
		sections = append(sections, section{name: "background", body: "## 📚 Background\n\n" + wiki + "\n\n"})
		hasContent = true
	}
	if papers, ok := categoryText(outputs, CategoryPapers); ok && looksLikePaperList(papers) {
		sections = append(sections, section{name: "research", body: "## 🔬 Academic Research\n\n" + synthesizePapers(query, papers) + "\n\n"})
		hasContent = true
	}
	if news, ok := categoryText(outputs, CategoryNews); ok && runeLen(news) > minSourceChars {
		sections = append(sections, section{name: "news", body: "## 📰 Recent Developments\n\n" + synthesizeNews(query, news) + "\n\n"})
		hasContent = true
	}
	if sentiment, ok := categoryText(outputs, CategorySentiment); ok && runeLen(sentiment) > minSentimentChars {
		sections = append(sections, section{name: "sentiment", body: "## 💭 Sentiment Analysis\n\n" + sentiment + "\n\n"})
		hasContent = true
	}

	if hasContent {
		sections = append(sections, section{name: "insights", body: "## 🎯 Key Insights\n\n" + keyInsights(query, outputs) + "\n\n"})
	}
	if res := scanGeneratedResources(results); len(res) > 0 {
		sections = append(sections, section{name: "resources", body: renderResources(res)})
	}
	sections = append(sections, section{name: "footer", body: fallbackFooter})
	return sections
}

// collapsibleBackground shows the leading wikiPreviewChars runes of the
// encyclopedia text, with the full text behind a details block when it
// runs longer.
func collapsibleBackground(text string) string {
	if runeLen(text) <= wikiPreviewChars {
		return text + "\n\n"
	}
	preview := string([]rune(text)[:wikiPreviewChars])
	return preview + "...\n\n" + fmt.Sprintf("<details><summary>Show full Wikipedia content</summary>\n\n%s\n\n</details>\n\n", text)
}
