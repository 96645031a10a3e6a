package synthesis

// outputsByTool reduces raw tool results to the successful outputs the
// composers work from. Text outputs carrying the error prefix are
// dropped despite their success status; mapping outputs are kept as is;
// other values are coerced to text at insertion. One entry per tool,
// last write wins.
func outputsByTool(results []ToolResultRecord) map[string]OutputValue {
	outputs := make(map[string]OutputValue, len(results))
	for _, r := range results {
		if !r.Succeeded() {
			continue
		}
		switch r.Output.Kind {
		case OutputMapping:
			outputs[r.Tool] = r.Output
		case OutputText:
			if r.Output.Text != "" && !isErrorText(r.Output.Text) {
				outputs[r.Tool] = r.Output
			}
		default:
			text, _ := r.Output.text()
			outputs[r.Tool] = TextOutput(text)
		}
	}
	return outputs
}

// categoryOutput returns the stored output for the tool mapped to cat.
// Each category corresponds to at most one tool identifier, so the map
// scan is deterministic.
func categoryOutput(outputs map[string]OutputValue, cat Category) (OutputValue, bool) {
	for tool, v := range outputs {
		if categoryOf(tool) == cat {
			return v, true
		}
	}
	return OutputValue{}, false
}

// categoryText fetches a category's output when it has a textual form.
func categoryText(outputs map[string]OutputValue, cat Category) (string, bool) {
	v, ok := categoryOutput(outputs, cat)
	if !ok {
		return "", false
	}
	return v.text()
}

// categoriesPresent reports which recognized categories have any
// successful output, regardless of shape.
func categoriesPresent(outputs map[string]OutputValue) map[Category]bool {
	present := make(map[Category]bool, len(outputs))
	for tool := range outputs {
		present[categoryOf(tool)] = true
	}
	return present
}
