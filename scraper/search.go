package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"domus/models"
)

// Fetcher is the rate-limited GET used by both crawler stages.
type Fetcher interface {
	Fetch(ctx context.Context, target string, params url.Values) ([]byte, error)
}

// SearchCrawler walks the pages of one search result listing.
type SearchCrawler struct {
	fetcher  Fetcher
	pageSize int

	// OnPage, when set, is called after each page is parsed.
	OnPage func(pageID, totalPages, listings int)
}

func NewSearchCrawler(fetcher Fetcher, pageSize int) *SearchCrawler {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &SearchCrawler{fetcher: fetcher, pageSize: pageSize}
}

// Crawl fetches page 1, 2, ... and hands every summary to yield in page
// order, assigning rank orders from 0. The page count is re-read from every
// page; the crawl stops once the current page is the last one it reports.
// The first fetch or parse error ends the crawl; summaries already yielded
// stay yielded.
func (c *SearchCrawler) Crawl(ctx context.Context, searchPath string, args url.Values, yield func(models.ListingSummary) error) error {
	rank := 0
	pageID := 1
	for {
		content, err := c.ReadSearchPage(ctx, searchPath, args, pageID)
		if err != nil {
			return fmt.Errorf("search page %d: %w", pageID, err)
		}

		totalPages, err := PageCount(content)
		if err != nil {
			return fmt.Errorf("search page %d: %w", pageID, err)
		}

		summaries, err := ParseSearchPage(content)
		if err != nil {
			return fmt.Errorf("search page %d: %w", pageID, err)
		}

		if c.OnPage != nil {
			c.OnPage(pageID, totalPages, len(summaries))
		}

		for _, s := range summaries {
			s.RankOrder = rank
			rank++
			if err := yield(s); err != nil {
				return err
			}
		}

		if totalPages <= pageID {
			return nil
		}
		pageID++
	}
}

func (c *SearchCrawler) ReadSearchPage(ctx context.Context, searchPath string, args url.Values, pageID int) ([]byte, error) {
	params := url.Values{}
	for k, vs := range args {
		params[k] = append([]string(nil), vs...)
	}
	params.Set("pc", strconv.Itoa(c.pageSize))
	params.Set("page", strconv.Itoa(pageID))

	log.Printf("Search: reading %s page %d (pc=%d)", searchPath, pageID, c.pageSize)
	return c.fetcher.Fetch(ctx, searchPath, params)
}

// ParseSearchPage extracts the listing blocks of a results page, top to bottom.
func ParseSearchPage(content []byte) ([]models.ListingSummary, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var summaries []models.ListingSummary
	var parseErr error
	doc.Find("div.property_unit").EachWithBreak(func(i int, unit *goquery.Selection) bool {
		title := unit.Find("h2.property_unit-title").First()
		href, ok := title.Find("a").First().Attr("href")
		if title.Length() == 0 || !ok || href == "" {
			parseErr = &ParseError{Field: "property_unit-title", Msg: fmt.Sprintf("unit %d has no title link", i)}
			return false
		}

		summary := models.ListingSummary{
			URL:   strings.TrimSpace(href),
			Title: strings.TrimSpace(title.Text()),
		}
		unit.Find("dl").Each(func(_ int, dl *goquery.Selection) {
			summary.Properties = append(summary.Properties, models.KV{
				Type:    strings.TrimSpace(dl.Find("dt").First().Text()),
				Content: strings.TrimSpace(dl.Find("dd").First().Text()),
			})
		})
		summaries = append(summaries, summary)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return summaries, nil
}

// PageCount is the largest page number in the pagination control. A page
// without the control is the only page.
func PageCount(content []byte) (int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return 0, fmt.Errorf("parse html: %w", err)
	}

	pager := doc.Find("ol.pagination-parts").First()
	if pager.Length() == 0 {
		return 1, nil
	}

	maxPage := 0
	pager.Find("a").Each(func(_ int, a *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(a.Text())); err == nil && n > maxPage {
			maxPage = n
		}
	})
	if maxPage == 0 {
		// Only the current page is rendered, without a link.
		return 1, nil
	}
	return maxPage, nil
}
