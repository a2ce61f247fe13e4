package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"domus/geo"
	"domus/identity"
	"domus/models"
	"domus/storage"
)

const detailTableSelector = "table.mt15.bdGrayT.bdGrayL.bgWhite.pCell10.bdclps.wf"

var (
	latitudeRegex  = regexp.MustCompile(`,initIdo?.*?([+-]?(?:[0-9]*[.])?[0-9]+)`)
	longitudeRegex = regexp.MustCompile(`,initKeido?.*?([+-]?(?:[0-9]*[.])?[0-9]+)`)
)

// DetailExtractor fetches listing pages through the page cache and parses them.
type DetailExtractor struct {
	fetcher  Fetcher
	cache    storage.PageCache
	useCache bool

	hits   int
	misses int
}

func NewDetailExtractor(fetcher Fetcher, cache storage.PageCache, useCache bool) *DetailExtractor {
	return &DetailExtractor{fetcher: fetcher, cache: cache, useCache: useCache}
}

// FetchDetail returns the page for url. With cache reads enabled a cached
// copy is returned as is. Every network fetch is written to the cache,
// whether or not reads are enabled.
func (e *DetailExtractor) FetchDetail(ctx context.Context, url string) ([]byte, error) {
	key := identity.CanonicalPath(url)

	if e.useCache {
		content, ok, err := e.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Printf("Detail: cache read for %s failed, fetching: %v", key, err)
		case ok:
			e.hits++
			return content, nil
		default:
			log.Printf("Detail: %s missed cache, fetching from server", key)
		}
	}

	content, err := e.fetcher.Fetch(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	e.misses++

	if err := e.cache.Put(ctx, key, content); err != nil {
		return nil, fmt.Errorf("cache %s: %w", key, err)
	}
	return content, nil
}

func (e *DetailExtractor) CacheHits() int { return e.hits }

func (e *DetailExtractor) Fetched() int { return e.misses }

// Extract is FetchDetail followed by ParseDetail.
func (e *DetailExtractor) Extract(ctx context.Context, url string) (*models.ListingDetail, error) {
	content, err := e.FetchDetail(ctx, url)
	if err != nil {
		return nil, err
	}
	detail, err := ParseDetail(content)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.URL = url
		}
		return nil, err
	}
	return detail, nil
}

// ParseDetail reads GPS, the attribute table and the nearby places block.
func ParseDetail(content []byte) (*models.ListingDetail, error) {
	gps, err := parseGPS(string(content))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	detail := &models.ListingDetail{GPS: &gps}

	doc.Find("li.cf.dibz.vat").Each(func(_ int, li *goquery.Selection) {
		label := li.Find("div.bgGreen").First()
		text := li.Find("div.lh15").First()
		if label.Length() == 0 || text.Length() == 0 {
			return
		}
		detail.NearbyPlaces = append(detail.NearbyPlaces, models.KV{
			Type:    strings.TrimSpace(label.Text()),
			Content: strings.TrimSpace(text.Text()),
		})
	})

	table := doc.Find(detailTableSelector).First()
	if table.Length() == 0 {
		return nil, &ParseError{Field: "detail table", Msg: "table not found"}
	}

	headers := table.Find("th")
	cells := table.Find("td")
	n := headers.Length()
	if cells.Length() < n {
		n = cells.Length()
	}
	for i := 0; i < n; i++ {
		th := headers.Eq(i)
		label := th.Text()
		if div := th.Find("div.fl").First(); div.Length() > 0 {
			label = div.Text()
		}
		detail.ContentDetails = append(detail.ContentDetails, models.KV{
			Type:    strings.TrimSpace(label),
			Content: strings.TrimSpace(cells.Eq(i).Text()),
		})
	}

	return detail, nil
}

func parseGPS(text string) (geo.Point, error) {
	lat, err := findCoordinate(latitudeRegex, text, "latitude")
	if err != nil {
		return geo.Point{}, err
	}
	lng, err := findCoordinate(longitudeRegex, text, "longitude")
	if err != nil {
		return geo.Point{}, err
	}
	return geo.NewPoint(lat, lng), nil
}

func findCoordinate(re *regexp.Regexp, text, field string) (float64, error) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, &ParseError{Field: field, Msg: "coordinate literal not found"}
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, &ParseError{Field: field, Msg: fmt.Sprintf("bad number %q", m[1])}
	}
	return v, nil
}
