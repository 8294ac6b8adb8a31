package archive

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
	"github.com/pevans/rageplaylists/dates"
	"github.com/pevans/rageplaylists/scraper"
)

// ErrMissingLink is recorded for listing items without an href.
var ErrMissingLink = errors.New("item has no link")

// SkippedItem describes a listing item that could not become an Entry.
type SkippedItem struct {
	Position int
	URL      string
	Caption  string
	Err      error
}

func (s SkippedItem) Error() string {
	return fmt.Sprintf("item %d (%q): %v", s.Position, s.Caption, s.Err)
}

// ExtractResult holds the entries of one listing page in page order, plus
// the items that were dropped. Dropped items never fail the page.
type ExtractResult struct {
	Entries []Entry
	Skipped []SkippedItem
}

// Extractor reads month listing pages.
type Extractor struct {
	config  scraper.ListingConfig
	baseURL *url.URL
}

// NewExtractor creates an extractor. Relative links are resolved against
// baseURL, which may be empty when listings use absolute links.
func NewExtractor(config scraper.ListingConfig, baseURL string) (*Extractor, error) {
	e := &Extractor{config: config.WithDefaults()}

	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		e.baseURL = u
	}

	return e, nil
}

// Extract parses a listing page and resolves each item's date against ref,
// normally the first day of the month being read.
func (e *Extractor) Extract(r io.Reader, ref dates.Date) (*ExtractResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return e.ExtractDocument(doc, ref), nil
}

// ExtractDocument is Extract for an already parsed document.
func (e *Extractor) ExtractDocument(doc *goquery.Document, ref dates.Date) *ExtractResult {
	result := &ExtractResult{}

	doc.Find(e.config.ItemSelector).Each(func(i int, item *goquery.Selection) {
		link := item
		if e.config.LinkSelector != "" {
			link = item.Find(e.config.LinkSelector).First()
		}

		caption := normalizeSpace(link.Text())
		if e.config.CaptionSelector != "" {
			caption = normalizeSpace(item.Find(e.config.CaptionSelector).First().Text())
		}

		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			result.Skipped = append(result.Skipped, SkippedItem{Position: i, Caption: caption, Err: ErrMissingLink})
			return
		}

		entryURL, err := e.resolveURL(href)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Position: i, URL: href, Caption: caption, Err: err})
			return
		}

		date, err := dates.Resolve(caption, ref)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Position: i, URL: entryURL, Caption: caption, Err: err})
			return
		}

		var timeslot string
		if e.config.TimeslotSelector != "" {
			timeslot = normalizeSpace(item.Find(e.config.TimeslotSelector).First().Text())
		}

		result.Entries = append(result.Entries, Entry{
			URL:      entryURL,
			Caption:  caption,
			Date:     date,
			Timeslot: timeslot,
		})
	})

	return result
}

// resolveURL makes href absolute and normalises it so that the same page
// always yields the same key.
func (e *Extractor) resolveURL(href string) (string, error) {
	var u *url.URL
	var err error
	if e.baseURL != nil {
		u, err = e.baseURL.Parse(href)
	} else {
		u, err = url.Parse(href)
	}
	if err != nil {
		return "", fmt.Errorf("invalid link: %w", err)
	}

	return purell.NormalizeURL(u, purell.FlagsSafe), nil
}

// NormalizeURL applies the normalisation used for extracted entry URLs, so
// URLs from other sources dedup against them.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("invalid URL %q: must be absolute", raw)
	}
	return purell.NormalizeURL(u, purell.FlagsSafe), nil
}

// normalizeSpace collapses runs of whitespace into single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
