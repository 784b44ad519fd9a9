package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
	"golang.org/x/net/html"

	"corpuscrawler/internal/urlutil"
)

const languageSampleWords = 100

// HTML is the default Extractor, built on goquery.
type HTML struct {
	// DetectLanguage tags documents with an ISO 639-3 code when detection is reliable.
	DetectLanguage bool
}

// NewHTML returns the default HTML extractor.
func NewHTML() *HTML {
	return &HTML{DetectLanguage: true}
}

var dropSelectors = "script, style, noscript, template, iframe, svg, header, footer, nav"

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true, "figure": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "hr": true,
	"li": true, "main": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// Extract returns the visible body text of an HTML page.
func (h *HTML) Extract(body []byte, _ string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Document{}, err
	}

	result := Document{
		Title:         cleanHumanText(doc.Find("title").First().Text()),
		PublishedDate: findPublishedDate(doc),
	}

	doc.Find(dropSelectors).Remove()

	root := doc.Find("body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	var builder strings.Builder
	for _, node := range root.Nodes {
		writeText(&builder, node)
	}

	result.Text = Normalize(builder.String())
	if result.Text == "" {
		return result, ErrNoText
	}

	if h.DetectLanguage {
		result.Language = detectLanguage(result.Title, result.Text)
	}

	return result, nil
}

// Links returns anchors whose raw href matches pattern.
func (h *HTML) Links(body []byte, pageURL string, pattern *regexp.Regexp, limit int) ([]Link, error) {
	if limit <= 0 {
		return []Link{}, nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	links := []Link{}
	seen := map[string]bool{}

	doc.Find("a[href]").EachWithBreak(func(_ int, selection *goquery.Selection) bool {
		href, _ := selection.Attr("href")
		href = strings.TrimSpace(href)
		if pattern != nil && !pattern.MatchString(href) {
			return true
		}

		resolved, ok := urlutil.Resolve(base, href)
		if !ok || seen[resolved] {
			return true
		}
		seen[resolved] = true

		links = append(links, Link{URL: resolved, Title: cleanHumanText(selection.Text())})

		return len(links) < limit
	})

	return links, nil
}

func writeText(builder *strings.Builder, node *html.Node) {
	switch node.Type {
	case html.TextNode:
		builder.WriteString(node.Data)

		return
	case html.CommentNode:
		return
	}

	block := node.Type == html.ElementNode && blockElements[node.Data]
	if block {
		builder.WriteString("\n")
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		writeText(builder, child)
	}

	if block {
		builder.WriteString("\n")
	}
}

func findPublishedDate(doc *goquery.Document) string {
	selectors := []struct {
		query string
		attr  string
	}{
		{query: `meta[property="article:published_time"]`, attr: "content"},
		{query: `meta[name="date"]`, attr: "content"},
		{query: `meta[itemprop="datePublished"]`, attr: "content"},
		{query: "time[datetime]", attr: "datetime"},
	}

	for _, sel := range selectors {
		value, ok := doc.Find(sel.query).First().Attr(sel.attr)
		if ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}

	return ""
}

func detectLanguage(title, text string) string {
	words := strings.Fields(text)
	if len(words) > languageSampleWords {
		words = words[:languageSampleWords]
	}

	sample := strings.TrimSpace(title + " " + strings.Join(words, " "))
	if sample == "" {
		return ""
	}

	info := whatlanggo.Detect(sample)
	if !info.IsReliable() {
		return ""
	}

	return info.Lang.Iso6393()
}
