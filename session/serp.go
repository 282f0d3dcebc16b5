package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// balanceSelectors locate the rewards balance badge on a results page,
// desktop first.
var balanceSelectors = []string{"#id_rc", "#fly_id_rc", "#bpage .points-container", "#mb_rc"}

// challengeSelectors mark a results page replaced by a human check.
var challengeSelectors = []string{
	"#b_captcha",
	"#turingCaptchaContainer",
	"iframe[src*='captcha']",
	"iframe[src*='challenges.cloudflare.com']",
	"form[action*='captcha']",
}

// suspendedSelectors mark a rewards page shown to a suspended account.
var suspendedSelectors = []string{"#suspendedAccountHeader", "#fraudErrorBody", "#error-page-suspended"}

// challengePhrases are matched against the lowercased page title and
// first heading.
var challengePhrases = []string{"unusual traffic", "verify you are a human", "one last step"}

// SERP is what a results page reveals about the search just made.
type SERP struct {
	Balance    int
	HasBalance bool
	Challenge  bool
	Results    int
}

// ParseSERP inspects a Bing results page.
func ParseSERP(html string) (SERP, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return SERP{}, fmt.Errorf("session: parse serp: %w", err)
	}

	var s SERP
	for _, sel := range balanceSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if n, ok := parsePoints(text); ok {
			s.Balance, s.HasBalance = n, true
			break
		}
	}
	s.Challenge = hasAny(doc, challengeSelectors) || hasPhrase(doc)
	s.Results = doc.Find("#b_results > li.b_algo").Length()
	return s, nil
}

// IsSuspended reports whether a rewards page is the suspension notice.
func IsSuspended(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return hasAny(doc, suspendedSelectors)
}

func hasAny(doc *goquery.Document, selectors []string) bool {
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

func hasPhrase(doc *goquery.Document) bool {
	text := strings.ToLower(doc.Find("title").First().Text() + " " + doc.Find("h1").First().Text())
	for _, p := range challengePhrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// parsePoints reads "12,345" or "12 345" style counters. Digits after
// the first non-separator are ignored.
func parsePoints(s string) (int, bool) {
	var b strings.Builder
scan:
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ',' || r == '.' || r == ' ' || r == '\u00a0' || r == '\u202f':
		default:
			if b.Len() > 0 {
				break scan
			}
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, false
	}
	return n, true
}
