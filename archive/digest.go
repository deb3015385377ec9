package archive

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Digest is a human-readable summary of the captured page, produced from
// the HTML snapshot for audit and job listings.
type Digest struct {
	Title    string `json:"title,omitempty"`
	Markdown string `json:"markdown,omitempty"`
}

var snapshotPolicy = bluemonday.UGCPolicy()

// DigestSnapshot converts the HTML snapshot into a markdown digest. The
// snapshot is sanitized first: captured pages carry scripts, event
// handlers, and whatever else the site shipped. Returns a zero Digest for
// empty or unusable input; a capture without a snapshot simply has no
// digest.
func DigestSnapshot(snapshot string) Digest {
	if strings.TrimSpace(snapshot) == "" {
		return Digest{}
	}

	var d Digest
	if doc, err := html.Parse(strings.NewReader(snapshot)); err == nil {
		d.Title = findTitle(doc)
	}

	clean := snapshotPolicy.Sanitize(snapshot)
	md, err := htmltomarkdown.ConvertString(clean)
	if err != nil {
		return d
	}
	d.Markdown = strings.TrimSpace(md)
	return d
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}
