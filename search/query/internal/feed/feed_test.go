package feed

import "testing"

const trendsSample = `<?xml version="1.0" encoding="UTF-8"?>
<rss xmlns:ht="https://trends.google.com/trending/rss" version="2.0">
  <channel>
    <title>Daily Search Trends</title>
    <item>
      <title>lunar eclipse</title>
      <ht:approx_traffic>500000+</ht:approx_traffic>
      <pubDate>Tue, 13 Oct 2026 20:00:00 -0700</pubDate>
      <ht:news_item>
        <ht:news_item_title>When to watch the eclipse tonight</ht:news_item_title>
        <ht:news_item_url>https://news.example.com/eclipse</ht:news_item_url>
      </ht:news_item>
      <ht:news_item>
        <ht:news_item_title>  </ht:news_item_title>
      </ht:news_item>
    </item>
    <item>
      <title>world series</title>
      <ht:approx_traffic>200000+</ht:approx_traffic>
    </item>
    <item>
      <title></title>
    </item>
  </channel>
</rss>`

const atomSample = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Trending</title>
  <entry><title>marathon results</title><updated>2026-10-13T08:00:00Z</updated></entry>
  <entry><title> </title></entry>
</feed>`

func TestParse_TrendsRSS(t *testing.T) {
	f, err := Parse([]byte(trendsSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Title != "Daily Search Trends" {
		t.Errorf("title: got %q", f.Title)
	}
	if len(f.Items) != 2 {
		t.Fatalf("items: got %d, want 2", len(f.Items))
	}
	first := f.Items[0]
	if first.Title != "lunar eclipse" || first.Traffic != "500000+" {
		t.Errorf("first item: got %+v", first)
	}
	if len(first.News) != 1 || first.News[0].URL != "https://news.example.com/eclipse" {
		t.Errorf("news: got %+v", first.News)
	}

	terms := f.Terms(true)
	want := []string{"lunar eclipse", "When to watch the eclipse tonight", "world series"}
	if len(terms) != len(want) {
		t.Fatalf("terms: got %q", terms)
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Errorf("terms[%d]: got %q, want %q", i, terms[i], want[i])
		}
	}
	if got := f.Terms(false); len(got) != 2 {
		t.Errorf("titles only: got %q", got)
	}
}

func TestParse_Atom(t *testing.T) {
	f, err := Parse([]byte(atomSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(f.Items) != 1 || f.Items[0].Title != "marathon results" {
		t.Fatalf("items: got %+v", f.Items)
	}
	if f.Items[0].Published != "2026-10-13T08:00:00Z" {
		t.Errorf("published fallback: got %q", f.Items[0].Published)
	}
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []string{"", "   ", "<html><body>nope</body></html>", "not xml"} {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("Parse(%q): expected error", in)
		}
	}
}
