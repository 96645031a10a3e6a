package synthesis

import (
	"strings"
	"unicode/utf8"
)

// Literal markers the composers pattern-match on. The tool contract is
// textual, so these must stay byte-identical to what the tools emit.
const (
	errorPrefix            = "Error:"
	qaRefusalPrefix        = "I'm sorry"
	paperPlaceholderMarker = "Sample Paper"
	noNewsMarker           = "No recent news"

	paperLinePrefix   = "**"
	newsArticleMarker = "**Article"
	newsTitleMarker   = "**Title"
)

// Content thresholds, counted in runes.
const (
	minSubstantialAnswer = 300
	minSourceChars       = 50
	minSentimentChars    = 20
	minNewsChars         = 100
	wikiPreviewChars     = 800
)

// Resource-scan triggers. The trigger match is case-insensitive; the
// chart/document hints are not.
var resourceTriggers = []string{"successfully created", "generated"}

const (
	chartExtHint     = ".png"
	chartWordHint    = "Chart"
	documentExtHint  = ".pdf"
	documentWordHint = "PDF"
)

func isErrorText(s string) bool { return strings.HasPrefix(s, errorPrefix) }

func isQARefusal(s string) bool { return strings.HasPrefix(s, qaRefusalPrefix) }

func isPlaceholderPaperResponse(s string) bool {
	return strings.Contains(s, paperPlaceholderMarker)
}

func isNoNewsResponse(s string) bool {
	return strings.Contains(s, noNewsMarker) || runeLen(s) < minNewsChars
}

// looksLikePaperList reports whether a papers output is a result list
// rather than prose or an error blob.
func looksLikePaperList(s string) bool {
	return strings.Contains(s, "Found") && strings.Contains(s, "papers")
}

func hasResourceTrigger(s string) bool {
	lower := strings.ToLower(s)
	for _, t := range resourceTriggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
