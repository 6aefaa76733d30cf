// internal/bot/rows.go
package bot

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Row is one table row of a result page. Index is the row's position among all tr
// elements of the document, which is how the browser addresses it (css=tr, nth Index).
type Row struct {
	Index   int
	InTBody bool
	Cells   []string
	Text    string
}

// rowText joins cells with tabs the way a rendered row reads, so cell contents never
// run together.
func rowText(s *goquery.Selection) (cells []string, text string) {
	s.ChildrenFiltered("td, th").Each(func(_ int, c *goquery.Selection) {
		cells = append(cells, normalize(c.Text()))
	})
	if len(cells) == 0 {
		return nil, normalize(s.Text())
	}
	return cells, strings.Join(cells, "\t")
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseRows extracts every tr of the document. When selector is not empty only rows
// matching it are returned, still carrying their document-wide index.
func ParseRows(html, selector string) ([]Row, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page html: %w", err)
	}
	var keep map[int]bool
	all := doc.Find("tr")
	if selector != "" {
		keep = make(map[int]bool)
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if i := all.IndexOfSelection(s); i >= 0 {
				keep[i] = true
			}
		})
	}

	var rows []Row
	all.Each(func(i int, s *goquery.Selection) {
		if keep != nil && !keep[i] {
			return
		}
		cells, text := rowText(s)
		rows = append(rows, Row{
			Index:   i,
			InTBody: s.ParentsFiltered("tbody").Length() > 0,
			Cells:   cells,
			Text:    text,
		})
	})
	return rows, nil
}

func containsFold(s, sub string) bool {
	return sub != "" && strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// SelectRow applies the row preference: full name, then first name token, then the
// record id as a whole cell, then the id anywhere in the row, then the first tbody row,
// then the second row of the document.
func SelectRow(rows []Row, q SearchQuery) (Row, bool) {
	name := strings.TrimSpace(q.FullName)
	id := strings.TrimSpace(q.RecordID)

	rules := []func(Row) bool{
		func(r Row) bool { return containsFold(r.Text, name) },
		func(r Row) bool { return containsFold(r.Text, q.FirstToken()) },
		func(r Row) bool {
			for _, c := range r.Cells {
				if id != "" && c == id {
					return true
				}
			}
			return false
		},
		func(r Row) bool { return id != "" && strings.Contains(r.Text, id) },
		func(r Row) bool { return r.InTBody },
	}
	for _, match := range rules {
		for _, r := range rows {
			if match(r) {
				return r, true
			}
		}
	}
	for _, r := range rows {
		if r.Index == 1 {
			return r, true
		}
	}
	return Row{}, false
}

// MatchesName reports whether a row belongs to name: the full name or its first token
// appears in the row, ignoring case.
func MatchesName(r Row, name string) bool {
	return containsFold(r.Text, strings.TrimSpace(name)) || containsFold(r.Text, token(name, 0))
}

// ExtractIdentifier returns the first run of at least minDigits consecutive digits
// found in the cells, scanned in order. It is a heuristic: the site publishes no
// canonical identifier format.
func ExtractIdentifier(cells []string, minDigits int) string {
	if minDigits < 1 {
		minDigits = 1
	}
	for _, cell := range cells {
		start, n := -1, 0
		for i, r := range cell {
			if r >= '0' && r <= '9' {
				if start < 0 {
					start = i
				}
				n++
				continue
			}
			if n >= minDigits {
				return cell[start:i]
			}
			start, n = -1, 0
		}
		if n >= minDigits {
			return cell[start:]
		}
	}
	return ""
}

// optionTexts returns the trimmed option labels of the n-th select of the document.
func optionTexts(doc *goquery.Document, n int) []string {
	var out []string
	doc.Find("select").Eq(n).Find("option").Each(func(_ int, o *goquery.Selection) {
		out = append(out, normalize(o.Text()))
	})
	return out
}

// skipOption reports placeholder options such as "" or "Select a State".
func skipOption(label string) bool {
	label = strings.TrimSpace(label)
	return label == "" || strings.HasPrefix(strings.ToLower(label), "select")
}
