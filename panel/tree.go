package panel

import (
	"golang.org/x/net/html"
)

// Node is a serializable snapshot of one DOM node. The shell rebuilds the
// region from these with DOM calls instead of innerHTML, since an HTML parser
// would move div.code out of inline code inside a paragraph.
type Node struct {
	Tag      string            `json:"tag,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Text     string            `json:"text,omitempty"`
	Children []Node            `json:"children,omitempty"`
}

// Tree returns the region's children as a node tree. Comments are skipped.
func (r *Region) Tree() []Node {
	var out []Node
	for _, n := range r.root.Nodes {
		out = appendChildren(out, n)
	}
	return out
}

func appendChildren(out []Node, parent *html.Node) []Node {
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if n, ok := toNode(c); ok {
			out = append(out, n)
		}
	}
	return out
}

func toNode(n *html.Node) (Node, bool) {
	switch n.Type {
	case html.TextNode:
		return Node{Text: n.Data}, true
	case html.ElementNode:
		node := Node{Tag: n.Data}
		if len(n.Attr) > 0 {
			node.Attrs = make(map[string]string, len(n.Attr))
			for _, a := range n.Attr {
				node.Attrs[a.Key] = a.Val
			}
		}
		node.Children = appendChildren(nil, n)
		return node, true
	default:
		return Node{}, false
	}
}
