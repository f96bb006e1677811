package fetch_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ncolesummers/wikihop/pkg/fetch"
	"github.com/ncolesummers/wikihop/pkg/resilience"
)

// newWikiServer serves a single article with three sections.
func newWikiServer(t *testing.T, sectionCalls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("action") != "parse" || q.Get("format") != "json" || q.Get("redirects") != "1" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("page") != "Christopher_Nolan" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{"code": "missingtitle", "info": "The page you specified doesn't exist."},
			})
			return
		}

		switch {
		case q.Get("prop") == "sections":
			if sectionCalls != nil {
				atomic.AddInt32(sectionCalls, 1)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"parse": map[string]interface{}{
					"title": "Christopher Nolan",
					"sections": []map[string]string{
						{"line": "Early life", "index": "1", "level": "2"},
						{"line": "Career", "index": "2", "level": "2"},
						{"line": "Personal&nbsp;life", "index": "3", "level": "2"},
					},
				},
			})
		case q.Get("prop") == "text":
			texts := map[string]string{
				"0": `<p><b>Christopher Nolan</b> is a filmmaker.<sup class="reference">[1]</sup></p>`,
				"1": `<h2>Early life<span class="mw-editsection">[edit]</span></h2><p>Nolan was born in <a href="/wiki/London">Westminster</a>, London.</p>`,
				"2": `<p>Career text.</p>`,
				"3": ``,
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"parse": map[string]interface{}{
					"title": "Christopher Nolan",
					"text":  map[string]string{"*": texts[q.Get("section")]},
				},
			})
		default:
			t.Errorf("unexpected prop %q", q.Get("prop"))
		}
	}))
}

func newFetcher(url string) *fetch.WikipediaFetcher {
	return fetch.NewWikipediaFetcher(fetch.Config{
		APIURL: url,
		Retry:  resilience.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond},
	})
}

func TestGetStructure(t *testing.T) {
	server := newWikiServer(t, nil)
	defer server.Close()
	f := newFetcher(server.URL)

	got, err := f.GetStructure(context.Background(), "https://en.wikipedia.org/wiki/Christopher_Nolan")
	if err != nil {
		t.Fatalf("GetStructure() error = %v", err)
	}
	if got.Title != "Christopher Nolan" {
		t.Errorf("Title = %v, want Christopher Nolan", got.Title)
	}
	if got.Summary != "Christopher Nolan is a filmmaker." {
		t.Errorf("Summary = %q", got.Summary)
	}
	if diff := cmp.Diff([]string{"Early life", "Career", "Personal life"}, got.Sections); diff != "" {
		t.Errorf("Sections mismatch (-want +got):\n%s", diff)
	}
}

func TestGetSection(t *testing.T) {
	var sectionCalls int32
	server := newWikiServer(t, &sectionCalls)
	defer server.Close()
	f := newFetcher(server.URL)
	ctx := context.Background()
	article := "https://en.wikipedia.org/wiki/Christopher_Nolan"

	tests := []struct {
		name    string
		section string
		want    string
	}{
		{"Exact", "Early life", "## Early life\n\nNolan was born in Westminster, London."},
		{"CaseInsensitive", "CAREER", "Career text."},
		{"Substring", "early", "## Early life\n\nNolan was born in Westminster, London."},
		{"LeadAlias", "Introduction", "Christopher Nolan is a filmmaker."},
		{"EmptyIsLead", "", "Christopher Nolan is a filmmaker."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.GetSection(ctx, article, tt.section)
			if err != nil {
				t.Fatalf("GetSection() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("GetSection() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := atomic.LoadInt32(&sectionCalls); got != 1 {
		t.Errorf("section index fetched %d times, want 1", got)
	}
}

func TestGetSectionNotFound(t *testing.T) {
	server := newWikiServer(t, nil)
	defer server.Close()
	f := newFetcher(server.URL)

	_, err := f.GetSection(context.Background(), "https://en.wikipedia.org/wiki/Christopher_Nolan", "Filmography")
	var notFound *fetch.SectionNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("GetSection() error = %v, want SectionNotFoundError", err)
	}
	want := "Section 'Filmography' not found. Available sections: ['Early life', 'Career', 'Personal life']..."
	if notFound.Error() != want {
		t.Errorf("Error() = %q, want %q", notFound.Error(), want)
	}

	_, err = f.GetSection(context.Background(), "https://en.wikipedia.org/wiki/Christopher_Nolan", "Personal life")
	if !errors.Is(err, fetch.ErrEmptySection) {
		t.Errorf("GetSection(empty) error = %v, want ErrEmptySection", err)
	}
}

func TestMissingArticle(t *testing.T) {
	server := newWikiServer(t, nil)
	defer server.Close()
	f := newFetcher(server.URL)

	_, err := f.GetStructure(context.Background(), "https://en.wikipedia.org/wiki/Nope")
	if !errors.Is(err, fetch.ErrArticleNotFound) {
		t.Errorf("GetStructure() error = %v, want ErrArticleNotFound", err)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"parse": map[string]interface{}{"title": "X", "text": map[string]string{"*": "<p>ok</p>"}},
		})
	}))
	defer server.Close()

	got, err := newFetcher(server.URL).GetSection(context.Background(), "X", "lead")
	if err != nil {
		t.Fatalf("GetSection() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("GetSection() = %q, want ok", got)
	}
}

func TestTitleFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://en.wikipedia.org/wiki/Mankatha_(soundtrack)", "Mankatha_(soundtrack)"},
		{"https://en.wikipedia.org/wiki/Caf%C3%A9#History", "Café"},
		{"Albert Einstein", "Albert_Einstein"},
	}
	for _, tt := range tests {
		if got := fetch.TitleFromURL(tt.in); got != tt.want {
			t.Errorf("TitleFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHTMLToText(t *testing.T) {
	input := `<div class="hatnote">For other uses, see X.</div>
<p>First <i>paragraph</i> here.</p>
<ul><li>one</li><li>two</li></ul>
<table class="infobox"><tr><th>Born</th><td>Ulm</td></tr></table>
<style>.x{}</style><script>alert(1)</script>`

	got, err := fetch.HTMLToText(input)
	if err != nil {
		t.Fatalf("HTMLToText() error = %v", err)
	}
	for _, want := range []string{"First paragraph here.", "- one", "- two", "Born | Ulm"} {
		if !strings.Contains(got, want) {
			t.Errorf("HTMLToText() = %q, missing %q", got, want)
		}
	}
	for _, unwanted := range []string{"For other uses", "alert", ".x{}", "\n\n\n"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("HTMLToText() = %q, should not contain %q", got, unwanted)
		}
	}
}
