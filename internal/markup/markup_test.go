package markup

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRewriteExternalLinks(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "external anchor gets target",
			in:   `<a href="http://example.com">x</a>`,
			want: `<a href="http://example.com" target="_blank">x</a>`,
		},
		{
			name: "relative anchor untouched",
			in:   `<a href="/local">x</a>`,
			want: `<a href="/local">x</a>`,
		},
		{
			name: "existing target replaced",
			in:   `<p>see <a target="_self" href="https://ctf.test/files">files</a></p>`,
			want: `<p>see <a target="_blank" href="https://ctf.test/files">files</a></p>`,
		},
		{
			name: "mixed anchors",
			in:   `<a href="/a">a</a><a href="ftp://b.test">b</a>`,
			want: `<a href="/a">a</a><a href="ftp://b.test" target="_blank">b</a>`,
		},
		{
			name: "plain text",
			in:   `no links here`,
			want: `no links here`,
		},
		{
			name: "numeric reference in scheme",
			in:   `<a href="https&#58;//evil.example/x">go</a>`,
			want: `<a href="https://evil.example/x" target="_blank">go</a>`,
		},
		{
			name: "named reference in scheme",
			in:   `<p><a href="http&colon;//evil.example/y">go</a></p>`,
			want: `<p><a href="http://evil.example/y" target="_blank">go</a></p>`,
		},
		{
			name: "upper case tag",
			in:   `<A HREF="http&#x3a;//evil.example/z">go</A>`,
			want: `<a href="http://evil.example/z" target="_blank">go</a>`,
		},
	}
	for _, tc := range cases {
		got, err := RewriteExternalLinks(tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestRewriteExternalLinksIsIdempotent(t *testing.T) {
	inputs := []string{
		`<a href="http://example.com">x</a>`,
		`<div><a href="https://a.test" target="_top">a</a> and <a href="#frag">b</a></div>`,
		`<ul><li><a href="/x">x</a></li><li><a href="http://y.test">y</a></li></ul>`,
		`<a href="https&#58;//evil.example/x">go</a>`,
		`<a href="http&colon;//evil.example/y" target="_self">go</a>`,
	}
	for _, in := range inputs {
		once, err := RewriteExternalLinks(in)
		if err != nil {
			t.Fatalf("rewrite: %v", err)
		}
		twice, err := RewriteExternalLinks(once)
		if err != nil {
			t.Fatalf("rewrite: %v", err)
		}
		if once != twice {
			t.Fatalf("not idempotent:\nonce  %q\ntwice %q", once, twice)
		}
		if strings.Count(once, "target=") != strings.Count(once, "://") {
			t.Fatalf("expected one target per external link in %q", once)
		}
	}
}

func TestExternalLinks(t *testing.T) {
	got := ExternalLinks(`<a href="https://a.test">1</a><a href="/b">2</a><a href="https://a.test">3</a><a href="http://c.test">4</a>`)
	if diff := cmp.Diff([]string{"https://a.test", "http://c.test"}, got); diff != "" {
		t.Fatalf("links (-want +got):\n%s", diff)
	}
}

func TestEveryReportedLinkIsRewritten(t *testing.T) {
	inputs := []string{
		`<a href="https&#58;//evil.example/x">go</a>`,
		`<a href="http&colon;//evil.example/y">go</a>`,
		`<div><a href="https://a.test">a</a><a href="/b">b</a></div>`,
	}
	for _, in := range inputs {
		out, err := RewriteExternalLinks(in)
		if err != nil {
			t.Fatalf("rewrite %q: %v", in, err)
		}
		links := ExternalLinks(in)
		if len(links) == 0 {
			t.Fatalf("expected external links in %q", in)
		}
		if got := strings.Count(out, `target="_blank"`); got != len(links) {
			t.Fatalf("%q: %d links %v but %d targets in %q", in, len(links), links, got, out)
		}
	}
}

func TestToMarkdown(t *testing.T) {
	cases := map[string]string{
		`<p>Find <a href="https://a.b">this</a> and <code>nc</code></p>`: "Find [this](https://a.b) and `nc`",
		`<h2>Intro</h2>text`:               "## Intro\n\ntext",
		`**already** markdown`:             "**already** markdown",
		`<ul><li>one</li><li>two</li></ul>`: "- one\n- two",
		`<script>alert(1)</script>safe`:    "safe",
	}
	for in, want := range cases {
		if got := ToMarkdown(in); got != want {
			t.Fatalf("ToMarkdown(%q) = %q want %q", in, got, want)
		}
	}
}
