package fetch_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"jobsift/internal/fetch"
)

const careersPage = `<!doctype html>
<html><head>
<title> Careers at  Acme </title>
<meta name="description" content="Build rockets with us">
<meta property="og:site_name" content="Acme Corp">
<style>.hidden{display:none}</style>
<script>var tracking = "ignore me";</script>
</head><body>
<h1>Open roles</h1>
<a href="/jobs/123-backend-engineer">Backend Engineer</a>
<a href="/jobs/123-backend-engineer#apply">Backend Engineer (apply)</a>
<a href="https://boards.example.com/acme/jobs/456">Data Engineer</a>
<a href="/about">About</a>
<a href="mailto:jobs@acme.example">Email us</a>
<a href="/jobs/">All jobs</a>
</body></html>`

func TestParsePage(t *testing.T) {
	page, err := fetch.ParsePage("https://acme.example/careers", []byte(careersPage))
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if page.Title != "Careers at Acme" {
		t.Fatalf("title = %q", page.Title)
	}
	if page.Description != "Build rockets with us" || page.SiteName != "Acme Corp" {
		t.Fatalf("meta not read: %+v", page.Meta)
	}
	if want := "Open roles Backend Engineer"; len(page.Text) < len(want) || page.Text[:len(want)] != want {
		t.Fatalf("text = %q", page.Text)
	}
	want := []fetch.Link{
		{URL: "https://acme.example/jobs/123-backend-engineer", Text: "Backend Engineer"},
		{URL: "https://boards.example.com/acme/jobs/456", Text: "Data Engineer"},
		{URL: "https://acme.example/about", Text: "About"},
		{URL: "https://acme.example/jobs/", Text: "All jobs"},
	}
	if diff := cmp.Diff(want, page.Links); diff != "" {
		t.Fatalf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestPostingLinksKeepsSameSiteJobPaths(t *testing.T) {
	page, err := fetch.ParsePage("https://acme.example/careers", []byte(careersPage))
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	got := fetch.PostingLinks(page, "Acme")
	if len(got) != 1 {
		t.Fatalf("expected one posting link, got %+v", got)
	}
	if got[0].URL != "https://acme.example/jobs/123-backend-engineer" || got[0].Company != "Acme" {
		t.Fatalf("unexpected posting %+v", got[0])
	}
}

func TestHTMLToText(t *testing.T) {
	got := fetch.HTMLToText("<p>We are <strong>hiring</strong>.</p><ul><li>Go</li><li>SQL</li></ul>")
	if got != "We are hiring . Go SQL" {
		t.Fatalf("HTMLToText = %q", got)
	}
}
