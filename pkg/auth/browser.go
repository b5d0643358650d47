// Package auth reads session cookies for login-walled profile hosts from local browser stores.
package auth

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // Import all browser cookie stores
	"github.com/browserutils/kooky/browser/chrome"
	"github.com/browserutils/kooky/browser/firefox"
)

// essentialCookies maps cookie domains to the cookies that carry a session.
// Domains without an entry get every cookie.
var essentialCookies = map[string][]string{
	"instagram.com":      {"sessionid", "csrftoken"},
	"linkedin.com":       {"li_at", "JSESSIONID", "lidc", "bcookie"},
	"x.com":              {"auth_token", "ct0", "kdt", "twid", "att"},
	"twitter.com":        {"auth_token", "ct0", "kdt", "twid", "att"},
	"strava.com":         {"_strava4_session"},
	"goodreads.com":      nil,
	"steamcommunity.com": nil,
}

// Domain returns the cookie domain for host, or "" when host is not a supported profile host.
func Domain(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for d := range essentialCookies {
		if host == d || strings.HasSuffix(host, "."+d) {
			return d
		}
	}
	return ""
}

// BrowserSource reads cookies from browser cookie stores. Results are memoized per domain.
type BrowserSource struct {
	logger *slog.Logger
	read   func(ctx context.Context, domain string) []*kooky.Cookie
	memo   sync.Map // domain -> map[string]string
}

// NewBrowserSource creates a new browser cookie source.
func NewBrowserSource(logger *slog.Logger) *BrowserSource {
	if logger == nil {
		logger = slog.Default()
	}
	s := &BrowserSource{logger: logger}
	s.read = s.readStores
	return s
}

// Cookies returns session cookies for host. Unsupported hosts and unreadable stores yield nil.
func (s *BrowserSource) Cookies(ctx context.Context, host string) map[string]string {
	domain := Domain(host)
	if domain == "" {
		return nil
	}
	if v, ok := s.memo.Load(domain); ok {
		m, _ := v.(map[string]string) //nolint:errcheck // only maps are stored
		return m
	}

	s.logger.DebugContext(ctx, "reading browser cookies", "domain", domain)
	cookies := s.filterEssential(ctx, s.read(ctx, domain), domain)
	s.memo.Store(domain, cookies)
	return cookies
}

func (s *BrowserSource) readStores(ctx context.Context, domain string) []*kooky.Cookie {
	// Zen Browser and Chrome Canary are not auto-detected by kooky.
	if c := s.tryFirefoxDir(ctx, domain, "Zen Browser", filepath.Join("Library", "Application Support", "zen", "Profiles")); len(c) > 0 {
		return c
	}
	if c := s.tryChromeCanary(ctx, domain); len(c) > 0 {
		return c
	}
	if c := s.tryFirefoxDir(ctx, domain, "Firefox", filepath.Join("Library", "Application Support", "Firefox", "Profiles")); len(c) > 0 {
		return c
	}

	kookies, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix(domain))
	if err != nil {
		s.logger.DebugContext(ctx, "failed to read browser cookies", "domain", domain, "error", err)
		return nil
	}
	return kookies
}

// tryFirefoxDir reads cookies from Firefox-format profiles under $HOME/rel.
func (s *BrowserSource) tryFirefoxDir(ctx context.Context, domain, browser, rel string) []*kooky.Cookie {
	home := os.Getenv("HOME")
	if home == "" {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(home, rel, "*", "cookies.sqlite"))
	if err != nil || len(matches) == 0 {
		return nil
	}

	for _, f := range matches {
		kookies, err := firefox.ReadCookies(ctx, f, kooky.Valid, kooky.DomainHasSuffix(domain))
		if err != nil {
			s.logger.DebugContext(ctx, "failed to read cookies",
				"browser", browser, "profile", filepath.Base(filepath.Dir(f)), "domain", domain, "error", err)
			continue
		}
		if len(kookies) > 0 {
			s.logger.DebugContext(ctx, "found cookies",
				"browser", browser, "profile", filepath.Base(filepath.Dir(f)), "domain", domain, "count", len(kookies))
			return kookies
		}
	}
	return nil
}

func (s *BrowserSource) tryChromeCanary(ctx context.Context, domain string) []*kooky.Cookie {
	home := os.Getenv("HOME")
	if home == "" {
		return nil
	}

	canaryDir := filepath.Join(home, "Library", "Application Support", "Google", "Chrome Canary")
	for _, profile := range []string{"Default", "Profile 1", "Profile 2", "Profile 3"} {
		cookiesFile := filepath.Join(canaryDir, profile, "Cookies")
		if _, err := os.Stat(cookiesFile); err != nil {
			continue
		}

		kookies, err := chrome.ReadCookies(ctx, cookiesFile, kooky.Valid, kooky.DomainHasSuffix(domain))
		if err != nil {
			if strings.Contains(err.Error(), "encryption") || strings.Contains(err.Error(), "decrypt") {
				s.logger.WarnContext(ctx, "Chrome Canary cookies exist but cannot be decrypted",
					"profile", profile, "domain", domain, "hint", "try Firefox or Zen Browser")
			} else {
				s.logger.DebugContext(ctx, "failed to read Chrome Canary cookies", "profile", profile, "domain", domain, "error", err)
			}
			continue
		}
		if len(kookies) > 0 {
			return kookies
		}
	}
	return nil
}

// filterEssential keeps only the session cookies for domain.
func (s *BrowserSource) filterEssential(ctx context.Context, kookies []*kooky.Cookie, domain string) map[string]string {
	if len(kookies) == 0 {
		return nil
	}

	essential := essentialCookies[domain]
	cookies := make(map[string]string)
	for _, c := range kookies {
		if len(essential) == 0 || containsString(essential, c.Name) {
			cookies[c.Name] = c.Value
		}
	}

	var missing []string
	for _, name := range essential {
		if _, ok := cookies[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		s.logger.InfoContext(ctx, "browser cookies missing", "domain", domain, "keys", missing)
	}
	if len(cookies) == 0 {
		return nil
	}
	return cookies
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
