package synthesis

import "strings"

// scanGeneratedResources walks every raw result looking for artifact
// creation messages. Status is ignored here: failed records are scanned
// too, unlike the outcome filter. First-seen order, no de-duplication.
func scanGeneratedResources(results []ToolResultRecord) []GeneratedResource {
	var resources []GeneratedResource
	for _, r := range results {
		text, ok := r.Output.text()
		if !ok || !hasResourceTrigger(text) {
			continue
		}
		switch {
		case strings.Contains(text, chartExtHint) || strings.Contains(text, chartWordHint):
			resources = append(resources, GeneratedResource{Kind: ResourceChart, Description: text})
		case strings.Contains(text, documentExtHint) || strings.Contains(text, documentWordHint):
			resources = append(resources, GeneratedResource{Kind: ResourceDocument, Description: text})
		}
	}
	return resources
}

func renderResources(resources []GeneratedResource) string {
	var b strings.Builder
	b.WriteString("## 📊 Generated Resources\n\n")
	for _, res := range resources {
		if res.Kind == ResourceChart {
			b.WriteString("📈 " + res.Description + "\n")
		} else {
			b.WriteString("📄 " + res.Description + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}
