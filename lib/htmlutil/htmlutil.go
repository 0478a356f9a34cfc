package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GetText concatenates every text node below node.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	// script contents are text nodes too, they are never visible text.
	if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// Clean strips non-printable runes, trims the string and collapses inner
// runs of whitespace into a single space.
func Clean(s string) string {
	s = removeNonPrintable(s)
	s = innerWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Text is the cleaned visible text of every node in sel.
func Text(sel *goquery.Selection) string {
	var out strings.Builder
	for _, n := range sel.Nodes {
		out.WriteString(GetText(n))
		out.WriteByte(' ')
	}
	return Clean(out.String())
}

// Cells returns the cleaned text of each cell matched by cellSelector
// within row.
func Cells(row *goquery.Selection, cellSelector string) []string {
	cells := row.Find(cellSelector)
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, cell *goquery.Selection) {
		out = append(out, Text(cell))
	})
	return out
}

// Anchor is a link found in a page, Onclick is kept since the portal
// navigates almost exclusively through javascript handlers.
type Anchor struct {
	Name    string
	Href    string
	Onclick string
}

func GetAnchors(sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	sel.Each(func(_ int, a *goquery.Selection) {
		anchors = append(anchors, Anchor{
			Name:    Text(a),
			Href:    strings.TrimSpace(a.AttrOr("href", "")),
			Onclick: strings.TrimSpace(a.AttrOr("onclick", "")),
		})
	})
	return anchors
}
