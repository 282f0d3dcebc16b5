// Package feed parses trending-searches feeds: RSS 2.0 (including the
// ht: namespace used by trending-search feeds) and Atom 1.0.
//
// The format is picked from the root element:
//   - <rss ...> or <rdf ...> → RSS 2.0
//   - <feed ...> → Atom 1.0
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Item is one trending topic.
type Item struct {
	Title     string     `json:"title"`
	Traffic   string     `json:"traffic,omitempty"`
	Published string     `json:"published,omitempty"`
	News      []NewsItem `json:"news,omitempty"`
}

// NewsItem is a headline attached to a trending topic.
type NewsItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Feed is a parsed trending feed.
type Feed struct {
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Parse detects the format and parses data.
func Parse(data []byte) (*Feed, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("feed: empty data")
	}
	switch rootElement(trimmed) {
	case "rss", "rdf":
		return parseRSS(trimmed)
	case "feed":
		return parseAtom(trimmed)
	}
	return nil, fmt.Errorf("feed: unknown format (expected <rss> or <feed>)")
}

func rootElement(data []byte) string {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			return strings.ToLower(se.Name.Local)
		}
	}
}

// --- RSS 2.0 ---

type rssRoot struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

// Namespaced elements are matched on their local name.
type rssItem struct {
	Title   string    `xml:"title"`
	Traffic string    `xml:"approx_traffic"`
	PubDate string    `xml:"pubDate"`
	News    []rssNews `xml:"news_item"`
}

type rssNews struct {
	Title string `xml:"news_item_title"`
	URL   string `xml:"news_item_url"`
}

func parseRSS(data []byte) (*Feed, error) {
	var root rssRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("feed: parse rss: %w", err)
	}
	f := &Feed{
		Title: strings.TrimSpace(root.Channel.Title),
		Items: make([]Item, 0, len(root.Channel.Items)),
	}
	for _, it := range root.Channel.Items {
		item := Item{
			Title:     strings.TrimSpace(it.Title),
			Traffic:   strings.TrimSpace(it.Traffic),
			Published: strings.TrimSpace(it.PubDate),
		}
		for _, n := range it.News {
			title := strings.TrimSpace(n.Title)
			if title == "" {
				continue
			}
			item.News = append(item.News, NewsItem{Title: title, URL: strings.TrimSpace(n.URL)})
		}
		if item.Title == "" && len(item.News) == 0 {
			continue
		}
		f.Items = append(f.Items, item)
	}
	return f, nil
}

// --- Atom 1.0 ---

type atomFeed struct {
	Title   string `xml:"title"`
	Entries []struct {
		Title     string `xml:"title"`
		Published string `xml:"published"`
		Updated   string `xml:"updated"`
	} `xml:"entry"`
}

func parseAtom(data []byte) (*Feed, error) {
	var root atomFeed
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("feed: parse atom: %w", err)
	}
	f := &Feed{
		Title: strings.TrimSpace(root.Title),
		Items: make([]Item, 0, len(root.Entries)),
	}
	for _, e := range root.Entries {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			continue
		}
		published := strings.TrimSpace(e.Published)
		if published == "" {
			published = strings.TrimSpace(e.Updated)
		}
		f.Items = append(f.Items, Item{Title: title, Published: published})
	}
	return f, nil
}

// Terms flattens the feed into search terms: each topic title followed by
// its news headlines.
func (f *Feed) Terms(withNews bool) []string {
	var out []string
	for _, it := range f.Items {
		if it.Title != "" {
			out = append(out, it.Title)
		}
		if !withNews {
			continue
		}
		for _, n := range it.News {
			out = append(out, n.Title)
		}
	}
	return out
}
