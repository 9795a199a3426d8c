package scraper

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html/charset"

	"jobmate/aggregator-service/internal/model"
)

// FeedItem is one entry of an RSS 2.0, RSS 1.0 (RDF) or Atom feed.
type FeedItem struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Published   string
}

// ParseFeed detects the feed flavour from the root element and extracts its
// items. Anything that is not a well-formed feed is an error.
func ParseFeed(data []byte) ([]FeedItem, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("feed: empty document")
	}
	switch rootElement(data) {
	case "rss":
		var root struct {
			Channel struct {
				Items []rssItem `xml:"item"`
			} `xml:"channel"`
		}
		if err := decodeXML(data, &root); err != nil {
			return nil, fmt.Errorf("feed: rss: %w", err)
		}
		return rssItems(root.Channel.Items), nil
	case "rdf":
		var root struct {
			Items []rssItem `xml:"item"`
		}
		if err := decodeXML(data, &root); err != nil {
			return nil, fmt.Errorf("feed: rdf: %w", err)
		}
		return rssItems(root.Items), nil
	case "feed":
		var root struct {
			Entries []atomEntry `xml:"entry"`
		}
		if err := decodeXML(data, &root); err != nil {
			return nil, fmt.Errorf("feed: atom: %w", err)
		}
		return atomItems(root.Entries), nil
	default:
		return nil, fmt.Errorf("feed: unknown format (expected <rss>, <rdf:RDF> or <feed>)")
	}
}

type rssItem struct {
	GUID        string `xml:"guid"`
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Date        string `xml:"date"` // dc:date
}

type atomEntry struct {
	ID    string `xml:"id"`
	Title string `xml:"title"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
}

func rssItems(in []rssItem) []FeedItem {
	out := make([]FeedItem, 0, len(in))
	for _, it := range in {
		pub := strings.TrimSpace(it.PubDate)
		if pub == "" {
			pub = strings.TrimSpace(it.Date)
		}
		out = append(out, FeedItem{
			GUID:        strings.TrimSpace(it.GUID),
			Title:       strings.TrimSpace(it.Title),
			Link:        strings.TrimSpace(it.Link),
			Description: strings.TrimSpace(it.Description),
			Published:   pub,
		})
	}
	return out
}

func atomItems(in []atomEntry) []FeedItem {
	out := make([]FeedItem, 0, len(in))
	for _, e := range in {
		var link string
		for _, l := range e.Links {
			if l.Rel == "alternate" || l.Rel == "" {
				link = strings.TrimSpace(l.Href)
				break
			}
		}
		if link == "" && len(e.Links) > 0 {
			link = strings.TrimSpace(e.Links[0].Href)
		}
		pub := strings.TrimSpace(e.Published)
		if pub == "" {
			pub = strings.TrimSpace(e.Updated)
		}
		out = append(out, FeedItem{
			GUID:        strings.TrimSpace(e.ID),
			Title:       strings.TrimSpace(e.Title),
			Link:        link,
			Description: strings.TrimSpace(e.Summary),
			Published:   pub,
		})
	}
	return out
}

func rootElement(data []byte) string {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.CharsetReader = charset.NewReaderLabel
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

func decodeXML(data []byte, v any) error {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.CharsetReader = charset.NewReaderLabel
	d.Entity = xml.HTMLEntity
	return d.Decode(v)
}

// Feed is an RSS/Atom-backed adapter. feed_url in the source block replaces
// the whole default feed; base_url only replaces its scheme and host.
type Feed struct {
	base
	sourceName string
	feedURL    func() string
}

func newFeed(b base, sourceName, defaultRoot, path string) *Feed {
	if b.cfg.SourceName != "" {
		sourceName = b.cfg.SourceName
	}
	u := ""
	switch {
	case b.cfg.FeedURL != "":
		u = b.cfg.FeedURL
	case defaultRoot != "":
		u = b.endpoint(defaultRoot) + path
	}
	return &Feed{base: b, sourceName: sourceName, feedURL: func() string { return u }}
}

// newCraigslist builds the feed for one city and category
// (defaults sfbay / sof).
func newCraigslist(b base) *Feed {
	city := b.cfg.City
	if city == "" {
		city = "sfbay"
	}
	category := b.cfg.Category
	if category == "" {
		category = "sof"
	}
	f := newFeed(b, "Craigslist RSS", "", "")
	f.feedURL = func() string {
		if b.cfg.FeedURL != "" {
			return b.cfg.FeedURL
		}
		root := b.endpoint("https://" + url.PathEscape(city) + ".craigslist.org")
		return root + "/search/" + url.PathEscape(category) + "?format=rss"
	}
	return f
}

// Search implements Adapter.
func (a *Feed) Search(ctx context.Context, _ model.SearchProfile) Result {
	if !a.Enabled() {
		return disabledResult(a.name)
	}
	feedURL := a.feedURL()
	if feedURL == "" {
		return failedResult(a.name, fmt.Errorf("no feed url configured"))
	}
	body, err := a.fetch.Get(ctx, feedURL, "application/rss+xml, application/atom+xml, application/xml, text/xml")
	if err != nil {
		a.log.Warn().Err(err).Msg("fetch failed")
		return failedResult(a.name, err)
	}
	items, err := ParseFeed(body)
	if err != nil {
		a.log.Warn().Err(err).Msg("malformed feed")
		return failedResult(a.name, err)
	}

	links := make([]model.JobLink, 0, len(items))
	for _, it := range items {
		if it.Link == "" {
			continue
		}
		meta := map[string]any{
			"title":       it.Title,
			"description": it.Description,
			"guid":        it.GUID,
		}
		if it.Published != "" {
			meta["published"] = it.Published
		}
		links = append(links, model.JobLink{URL: it.Link, SourceName: a.sourceName, SourceDomain: a.domain, Meta: meta})
	}
	return okResult(a.name, links)
}
