package pipeline

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// addClasses appends each name missing from the class attribute.
func addClasses(n *html.Node, names []string) {
	if len(names) == 0 {
		return
	}
	current, _ := getAttr(n, "class")
	classes := strings.Fields(current)
	seen := make(map[string]bool, len(classes))
	for _, c := range classes {
		seen[c] = true
	}
	changed := false
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		classes = append(classes, name)
		changed = true
	}
	if changed {
		setAttr(n, "class", strings.Join(classes, " "))
	}
}

// findElement returns the first element with the given atom in document
// order.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
