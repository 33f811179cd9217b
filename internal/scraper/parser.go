package scraper

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/grapplerank/ajp-results/internal/event"
)

// matchRowSelector identifies one bout row on a match list page.
const matchRowSelector = "div.match-row.well.well-inverted.well-extra-condensed.end"

// ParseError is a typed parse failure: the page had no recognizable event
// header and no extractable match rows. Parse failures are never retried.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse match list: " + e.Reason
}

// PageResult holds everything extracted from one match list page.
type PageResult struct {
	EventName string
	Year      int
	// PageCount is how many pages the event spans, learned from the
	// pagination control on the first page. 1 when no pagination exists.
	PageCount int
	Matches   []event.Match
	// SkippedRows counts match rows dropped for missing both athlete
	// names. A page with skipped rows but at least one good row is
	// committed as partial by the pipeline.
	SkippedRows int
}

var (
	viaTimePattern = regexp.MustCompile(`Won by ([\w ]+)\s*-\s*(\d{2}:\d{2})`)
	viaPattern     = regexp.MustCompile(`Won by ([\w ]+)`)
	yearPattern    = regexp.MustCompile(`(\d{4})`)
	weightPattern  = regexp.MustCompile(`^(\d+KG)(?:\s*\((\w+)\))?`)
)

// ParseMatchList extracts event metadata and match records from raw page
// HTML. It tolerates missing optional fields by leaving them empty, and
// fails only when neither the event name nor any match row is present.
func ParseMatchList(page []byte) (*PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("reading document: %v", err)}
	}

	result := &PageResult{
		EventName: strings.TrimSpace(doc.Find("h1").First().Text()),
		Year:      extractYear(doc),
		PageCount: extractPageCount(doc),
	}

	// Match rows inherit the nearest preceding category row, so walk both
	// in document order.
	category := categoryInfo{}
	doc.Find("div.category-row, " + matchRowSelector).Each(func(i int, sel *goquery.Selection) {
		if sel.HasClass("category-row") {
			category = parseCategory(strings.TrimSpace(sel.Text()))
			return
		}
		m, ok := parseMatchRow(sel, category, result.EventName, result.Year)
		if !ok {
			result.SkippedRows++
			return
		}
		result.Matches = append(result.Matches, m)
	})

	if result.EventName == "" && len(result.Matches) == 0 {
		return nil, &ParseError{Reason: "missing event name and no match rows"}
	}
	return result, nil
}

// extractYear finds the event year in the header date, falling back to the
// first four-digit run anywhere in the headline elements.
func extractYear(doc *goquery.Document) int {
	if date := doc.Find("div.event-header-date").First(); date.Length() > 0 {
		if m := yearPattern.FindString(date.Text()); m != "" {
			year, _ := strconv.Atoi(m)
			return year
		}
	}

	year := 0
	doc.Find("div, span, h2, h3").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if m := yearPattern.FindString(sel.Text()); m != "" {
			year, _ = strconv.Atoi(m)
			return false
		}
		return true
	})
	return year
}

// extractPageCount derives the page total from the pagination list. The
// control includes a trailing navigation item, so n list items mean n-1
// fetchable pages.
func extractPageCount(doc *goquery.Document) int {
	items := doc.Find("ul.pagination li").Length()
	if items <= 2 {
		return 1
	}
	return items - 1
}

type categoryInfo struct {
	category string
	belt     string
	typ      string
	weight   string
	day      string
}

// parseCategory splits a category row like
// "Gi / Purple / Master 1 / 85KG (Saturday)" into its descriptor parts.
func parseCategory(text string) categoryInfo {
	parts := strings.Split(text, "/")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	info := categoryInfo{}
	if len(parts) > 0 {
		info.category = parts[0]
	}
	if len(parts) > 1 {
		info.belt = parts[1]
	}
	if len(parts) > 2 {
		info.typ = parts[2]
	}
	if len(parts) > 3 {
		if m := weightPattern.FindStringSubmatch(parts[3]); m != nil {
			info.weight = m[1]
			info.day = m[2]
		} else {
			info.weight = parts[3]
		}
	}
	return info
}

// parseMatchRow extracts one match. It reports ok=false when the row is
// missing both athlete names, the mandatory identity fields of a bout.
func parseMatchRow(sel *goquery.Selection, cat categoryInfo, eventName string, year int) (event.Match, bool) {
	participants := sel.Find("span.participant")
	clubs := sel.Find("span.club")

	m := event.Match{
		Athlete1:  directText(participants.Eq(0)),
		Athlete2:  directText(participants.Eq(1)),
		Team1:     strings.TrimSpace(clubs.Eq(0).Text()),
		Team2:     strings.TrimSpace(clubs.Eq(1).Text()),
		Category:  cat.category,
		Belt:      cat.belt,
		Type:      cat.typ,
		Weight:    cat.weight,
		Day:       cat.day,
		EventName: eventName,
		Year:      year,
		EventID:   0, // stamped by the pipeline
	}
	if m.Athlete1 == "" && m.Athlete2 == "" {
		return event.Match{}, false
	}

	m.WinnerVia, m.Time = extractViaAndTime(strings.TrimSpace(sel.Find("span.text-success").First().Text()))
	if m.WinnerVia == "" || m.Time == "" {
		participants.EachWithBreak(func(i int, p *goquery.Selection) bool {
			via, t := extractViaAndTime(strings.TrimSpace(p.Text()))
			if via != "" && t != "" {
				m.WinnerVia, m.Time = via, t
				return false
			}
			return true
		})
	}

	participants.EachWithBreak(func(i int, p *goquery.Selection) bool {
		if p.HasClass("ok") {
			m.Winner = directText(p)
			return false
		}
		return true
	})

	return m, true
}

// extractViaAndTime parses "Won by <method> - <mm:ss>" text; the time part
// may be absent.
func extractViaAndTime(text string) (via, elapsed string) {
	if m := viaTimePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), m[2]
	}
	if m := viaPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), ""
	}
	return "", ""
}

// directText returns the first non-empty text node directly under the
// selection, ignoring nested elements such as the club span inside a
// participant span.
func directText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	for c := sel.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		if t := strings.TrimSpace(c.Data); t != "" {
			return t
		}
	}
	return ""
}
