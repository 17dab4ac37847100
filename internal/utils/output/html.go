package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
)

// DumpHTML saves a fetched page to path for inspecting selectors, one element
// per line when pretty is set.
func DumpHTML(path, page string, pretty bool) error {
	if !pretty {
		return os.WriteFile(path, []byte(page), 0644)
	}

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return fmt.Errorf("parsing page for dump: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	indent(w, doc, 0)
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// indent writes n and its children with two spaces per nesting level.
// Whitespace-only text is dropped.
func indent(w io.Writer, n *html.Node, depth int) {
	pad := strings.Repeat("  ", depth)
	switch n.Type {
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			indent(w, c, depth)
		}
	case html.DoctypeNode:
		fmt.Fprintf(w, "<!DOCTYPE %s>\n", n.Data)
	case html.CommentNode:
		fmt.Fprintf(w, "%s<!--%s-->\n", pad, n.Data)
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			fmt.Fprintf(w, "%s%s\n", pad, text)
		}
	case html.ElementNode:
		fmt.Fprintf(w, "%s<%s", pad, n.Data)
		for _, a := range n.Attr {
			fmt.Fprintf(w, " %s=\"%s\"", a.Key, html.EscapeString(a.Val))
		}
		io.WriteString(w, ">\n")
		if voidElements[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			indent(w, c, depth+1)
		}
		fmt.Fprintf(w, "%s</%s>\n", pad, n.Data)
	}
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true, "img": true,
	"input": true, "link": true, "meta": true, "source": true, "track": true, "wbr": true,
}
