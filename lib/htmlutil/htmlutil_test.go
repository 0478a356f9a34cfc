package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func TestClean(t *testing.T) {
	require.Equal(t, "Next Hearing Date", Clean("  Next\n\t Hearing   Date ​"))
	require.Equal(t, "", Clean(" \n "))
}

func TestCells(t *testing.T) {
	doc := parse(t, `<table><tr>
		<td> 1 </td>
		<td>Order <b>dated</b><script>var x = 1;</script></td>
		<th>header</th>
	</tr></table>`)

	row := doc.Find("tr").First()
	require.Equal(t, []string{"1", "Order dated"}, Cells(row, "td"))
	require.Equal(t, []string{"1", "Order dated", "header"}, Cells(row, "td, th"))
}

func TestGetAnchors(t *testing.T) {
	doc := parse(t, `<div>
		<a href="#" onclick="viewHistory(1)"> View </a>
		<a href="/x">Plain</a>
	</div>`)

	anchors := GetAnchors(doc.Find("a"))
	require.Equal(t, []Anchor{
		{Name: "View", Href: "#", Onclick: "viewHistory(1)"},
		{Name: "Plain", Href: "/x"},
	}, anchors)
}
