package sources

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ExtractTableRows parses an HTML document and returns the cell text of every
// row of its first table body, in document order. The parser implies a
// <tbody> for bare tables, so header rows inside <thead> never show up.
// Cell text is the concatenated text content, trimmed, with whitespace runs
// collapsed to single spaces.
func ExtractTableRows(r io.Reader) ([][]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	container := findFirst(doc, atom.Tbody)
	if container == nil {
		container = findFirst(doc, atom.Table)
	}
	if container == nil {
		return nil, fmt.Errorf("no table found")
	}

	var rows [][]string
	for _, tr := range childElements(container, atom.Tr) {
		cells := make([]string, 0, 16)
		for _, td := range childElements(tr, atom.Td) {
			cells = append(cells, cellText(td))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// findFirst does a depth-first search for the first element of type a.
func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// childElements returns the direct element children of type a.
func childElements(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			out = append(out, c)
		}
	}
	return out
}

func cellText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
