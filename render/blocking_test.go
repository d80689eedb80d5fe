package render

import (
	"strings"
	"testing"
)

func TestIsBlockingPageShortWithPattern(t *testing.T) {
	content := strings.Repeat("x", 100) + " please verify you are human " + strings.Repeat("y", 50)
	if !IsBlockingPage(content) {
		t.Error("expected short content with blocking pattern to be classified as blocking")
	}
}

func TestIsBlockingPageMidLengthWithPattern(t *testing.T) {
	content := strings.Repeat("x", 1500) + " captcha " + strings.Repeat("y", 1000)
	if !IsBlockingPage(content) {
		t.Error("expected mid-length content with blocking pattern to be classified as blocking")
	}
}

func TestIsBlockingPageLongContentNotBlocked(t *testing.T) {
	content := strings.Repeat("x", 1000) + " captcha " + strings.Repeat("y", 2500)
	if IsBlockingPage(content) {
		t.Error("expected long content to not be classified as blocking even with an incidental pattern mention")
	}
}

func TestIsBlockingPageNoPatternNotBlocked(t *testing.T) {
	content := "This is a perfectly ordinary article about gardening and vegetables."
	if IsBlockingPage(content) {
		t.Error("expected ordinary content to not be classified as blocking")
	}
}

func TestIsBlockingPageOnlyScansFirst2000Chars(t *testing.T) {
	content := strings.Repeat("x", 2500) + " captcha"
	if IsBlockingPage(content) {
		t.Error("expected pattern beyond the first 2000 chars to be ignored")
	}
}
