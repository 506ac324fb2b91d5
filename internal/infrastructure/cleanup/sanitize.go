package cleanup

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// junkSelectors matches markup that never carries recipe signal: scripts,
// chrome, ads, social widgets, comment sections, and hidden elements.
var junkSelectors = strings.Join([]string{
	"script", "style", "noscript", "iframe", "embed", "object", "svg",
	"nav", "header", "footer", "aside", "form", "button",
	"[class*=ad-]", "[class*=ads]", "[id*=ad-]", "[class*=advert]",
	"[class*=banner]", "[class*=promo]", "[class*=sponsor]",
	"[class*=social]", "[class*=share]",
	"[class*=comment]", "[id*=comment]",
	"[class*=sidebar]", "[id*=sidebar]", "[class*=related]",
	"[class*=newsletter]", "[class*=popup]", "[class*=modal]", "[class*=cookie]",
	`[style*="display:none"]`, `[style*="display: none"]`,
	"[hidden]", `[aria-hidden="true"]`,
}, ", ")

// pruneJunk removes junk descendants in place.
func pruneJunk(sel *goquery.Selection) {
	sel.Find(junkSelectors).Remove()
}

// removeComments drops comment nodes, which CSS selectors cannot match.
func removeComments(sel *goquery.Selection) {
	for _, node := range sel.Nodes {
		stripCommentNodes(node)
	}
}

func stripCommentNodes(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
			continue
		}
		stripCommentNodes(c)
	}
}

// stripAttributes removes presentation and tracking attributes from every
// element, keeping semantic ones such as href and src.
func stripAttributes(sel *goquery.Selection) {
	for _, node := range sel.Nodes {
		stripNodeAttributes(node)
	}
}

func stripNodeAttributes(n *html.Node) {
	if n.Type == html.ElementNode && len(n.Attr) > 0 {
		kept := n.Attr[:0]
		for _, attr := range n.Attr {
			if keepAttribute(attr.Key) {
				kept = append(kept, attr)
			}
		}
		n.Attr = kept
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		stripNodeAttributes(c)
	}
}

func keepAttribute(key string) bool {
	switch {
	case key == "style" || key == "class" || key == "id":
		return false
	case strings.HasPrefix(key, "data-"):
		return false
	case strings.HasPrefix(key, "on"):
		return false
	}
	return true
}
