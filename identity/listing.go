package identity

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	listingCodeRegex = regexp.MustCompile(`/nc_(\d+)/?`)
	multiSlashRegex  = regexp.MustCompile(`/{2,}`)
)

// CanonicalPath reduces a listing link to the site path used as cache key and
// listing id. Scheme, host, query and fragment are dropped and a trailing
// slash is enforced, so "https://suumo.jp/ms/x/nc_1" and "/ms/x/nc_1/" agree.
func CanonicalPath(raw string) string {
	raw = strings.TrimSpace(raw)
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	if p == "" {
		return raw
	}
	p = multiSlashRegex.ReplaceAllString(p, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// ListingCode extracts the numeric listing code (nc_XXXX) from a path.
func ListingCode(path string) (string, bool) {
	m := listingCodeRegex.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return m[1], true
}
