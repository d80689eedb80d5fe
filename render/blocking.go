package render

import "strings"

// blockingPatterns are substrings indicating an anti-bot/captcha page rather
// than real article content, per §4.3.
var blockingPatterns = []string{
	"captcha",
	"please verify",
	"access denied",
	"forbidden",
	"rate limit",
	"too many requests",
	"blocked",
	"unusual traffic",
	"security check",
	"ddos protection",
	"challenge-platform",
	"hcaptcha",
	"recaptcha",
	"just a moment",
	"checking your browser",
	"enable javascript",
	"redirecting",
}

const blockingScanChars = 2000

// IsBlockingPage applies the length-gated heuristic from §4.3: a short
// result containing a blocking pattern is blocked outright; a longer result
// is blocked only if it's still short enough that the pattern plausibly
// dominates the page rather than being an incidental mention in a long
// legitimate article.
func IsBlockingPage(result string) bool {
	scan := result
	if len(scan) > blockingScanChars {
		scan = scan[:blockingScanChars]
	}
	lower := strings.ToLower(scan)

	found := false
	for _, p := range blockingPatterns {
		if strings.Contains(lower, p) {
			found = true
			break
		}
	}
	if !found {
		return false
	}

	switch {
	case len(result) < 200:
		return true
	case len(result) <= 3000:
		return true
	default:
		return false
	}
}
