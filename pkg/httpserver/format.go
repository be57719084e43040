package httpserver

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// displayLocales are the locales totals are formatted for. The first one is
// the fallback.
var displayLocales = []language.Tag{
	language.BritishEnglish,
	language.AmericanEnglish,
	language.German,
	language.French,
	language.Spanish,
	language.Italian,
}

var localeMatcher = language.NewMatcher(displayLocales)

// resolveLanguage picks a display locale from Accept-Language.
func resolveLanguage(r *http.Request) language.Tag {
	accept := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if accept == "" {
		return displayLocales[0]
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return displayLocales[0]
	}
	_, index, confidence := localeMatcher.Match(tags...)
	if confidence == language.No {
		return displayLocales[0]
	}
	return displayLocales[index]
}

// formatSteps groups digits the way the locale does, e.g. 254,343 or 254.343.
func formatSteps(p *message.Printer, n int64) string {
	return p.Sprintf("%d", n)
}

const asOfLayout = "2 Jan 2006, 15:04 MST"

func formatAsOf(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(asOfLayout)
}
