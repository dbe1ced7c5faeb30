package fetch

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Link is an anchor found on a page.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Page is a fetched HTML document reduced to what the stages inspect.
type Page struct {
	URL         string            `json:"url"`
	FinalURL    string            `json:"final_url"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	SiteName    string            `json:"site_name,omitempty"`
	Text        string            `json:"text"`
	Links       []Link            `json:"links,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Raw         []byte            `json:"-"`
}

// Page fetches rawURL and parses it as HTML.
func (c *Client) Page(ctx context.Context, rawURL string) (*Page, error) {
	resp, err := c.Get(ctx, rawURL, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	if err != nil {
		return nil, err
	}
	page, err := ParsePage(resp.FinalURL, resp.Body)
	if err != nil {
		return nil, err
	}
	page.URL = resp.URL
	page.ContentType = resp.ContentType
	return page, nil
}

// ParsePage extracts title, meta tags, visible text and absolute links. A
// linked RSS or Atom feed is recorded under Meta["alternate:feed"].
func ParsePage(pageURL string, body []byte) (*Page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)
	page := &Page{URL: pageURL, FinalURL: pageURL, Meta: map[string]string{}, Raw: body}

	var text strings.Builder
	seen := map[string]bool{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			case atom.Title:
				if page.Title == "" {
					page.Title = collapse(nodeText(n))
				}
				return
			case atom.Meta:
				key := strings.ToLower(attr(n, "name"))
				if key == "" {
					key = strings.ToLower(attr(n, "property"))
				}
				if key != "" {
					page.Meta[key] = strings.TrimSpace(attr(n, "content"))
				}
			case atom.Link:
				feedType := strings.ToLower(attr(n, "type"))
				if strings.EqualFold(attr(n, "rel"), "alternate") && (strings.Contains(feedType, "rss") || strings.Contains(feedType, "atom")) {
					if href := resolve(base, attr(n, "href")); href != "" {
						page.Meta["alternate:feed"] = href
					}
				}
			case atom.A:
				if href := resolve(base, attr(n, "href")); href != "" && !seen[href] {
					seen[href] = true
					page.Links = append(page.Links, Link{URL: href, Text: collapse(nodeText(n))})
				}
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				text.WriteString(t)
				text.WriteByte(' ')
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	page.Text = collapse(text.String())
	page.Description = firstNonEmpty(page.Meta["description"], page.Meta["og:description"])
	page.SiteName = page.Meta["og:site_name"]
	return page, nil
}

// HTMLToText reduces an HTML fragment to its visible text.
func HTMLToText(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body})
	if err != nil {
		return collapse(fragment)
	}
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(nodeText(n))
		b.WriteByte(' ')
	}
	return collapse(b.String())
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") || strings.HasPrefix(strings.ToLower(href), "mailto:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	ref.Fragment = ""
	return ref.String()
}

func collapse(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
