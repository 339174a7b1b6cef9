package scraper

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cloo-solutions/regassist/internal/domain"
	"golang.org/x/net/html"
)

const (
	ruleTableSelector = "table.dataplugin_table"
	mainSelector      = "main#writr__main"
)

// ParseRuleIndex reads the rules listing. The first table row is a header;
// rows with exactly two cells and a link in the first cell name a rule.
// Links are resolved against base.
func ParseRuleIndex(r io.Reader, base *url.URL) ([]domain.Rule, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules index: %w", err)
	}

	table := doc.Find(ruleTableSelector).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("rules index has no %s", ruleTableSelector)
	}

	var rules []domain.Rule
	table.Find("tr").Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		if cells.Length() != 2 {
			return
		}
		link := cells.First().Find("a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		rules = append(rules, domain.Rule{
			Title: strings.TrimSpace(link.Text()),
			URL:   base.ResolveReference(ref).String(),
			Date:  strings.TrimSpace(cells.Last().Text()),
		})
	})

	return rules, nil
}

// ExtractElements returns the headings, paragraphs, list items and tables of
// a rule page's main content in document order. A page without a main
// content region yields no elements.
func ExtractElements(r io.Reader) ([]domain.StructuralElement, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rule page: %w", err)
	}

	main := doc.Find(mainSelector).First()
	if main.Length() == 0 {
		return nil, nil
	}

	var elements []domain.StructuralElement
	main.Find("*").Each(func(_ int, sel *goquery.Selection) {
		name := goquery.NodeName(sel)
		kind, level, ok := classifyTag(name)
		if !ok {
			return
		}

		if kind == domain.ElementTable {
			elements = append(elements, domain.StructuralElement{
				Kind:    kind,
				Rows:    tableRows(sel),
				InTable: sel.ParentsFiltered("table").Length() > 0,
			})
			return
		}

		el := domain.StructuralElement{
			Kind:    kind,
			Level:   level,
			Text:    joinedText(sel, " "),
			InTable: sel.ParentsFiltered("table").Length() > 0,
		}
		if kind != domain.ElementHeading {
			if strong := sel.Find("strong, b").First(); strong.Length() > 0 {
				el.Emphasis = joinedText(strong, "")
			}
		}
		elements = append(elements, el)
	})

	return elements, nil
}

func classifyTag(name string) (domain.ElementKind, int, bool) {
	switch name {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return domain.ElementHeading, int(name[1] - '0'), true
	case "p":
		return domain.ElementParagraph, 0, true
	case "li":
		return domain.ElementListItem, 0, true
	case "table":
		return domain.ElementTable, 0, true
	}
	return "", 0, false
}

func tableRows(table *goquery.Selection) [][]string {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, joinedText(cell, ""))
		})
		rows = append(rows, cells)
	})
	return rows
}

// joinedText trims every text node under sel and joins the non-empty ones with sep.
func joinedText(sel *goquery.Selection, sep string) string {
	var parts []string
	for _, n := range sel.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, sep)
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
