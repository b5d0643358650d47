package recommend

import (
	"errors"
	"net/url"
	"strings"
)

// ErrNotAffiliate is returned by AffiliateURL for URLs that are not on an Amazon storefront.
var ErrNotAffiliate = errors.New("not an amazon url")

// SearchURL returns the storefront search URL for query, with the affiliate tag when set.
func SearchURL(query, tag string) string {
	q := url.Values{}
	q.Set("k", query)
	if tag != "" {
		q.Set("tag", tag)
	}
	u := url.URL{Scheme: "https", Host: "www.amazon.com", Path: "/s", RawQuery: q.Encode()}
	return u.String()
}

// AffiliateURL rewrites the tag parameter of an Amazon URL.
func AffiliateURL(rawURL, tag string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrNotAffiliate
	}
	if !strings.Contains(strings.ToLower(u.Hostname()), "amazon.") {
		return "", ErrNotAffiliate
	}
	if tag != "" {
		q := u.Query()
		q.Set("tag", tag)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
