// Package htmlutil provides HTML text helpers shared by the page extractor and the resolver.
package htmlutil

import (
	"net/url"
	"regexp"
	"strings"
)

// SampleWords is the number of whitespace-delimited tokens kept in a text sample.
const SampleWords = 160

var (
	scriptPattern     = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	stylePattern      = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	multiSpacePattern = regexp.MustCompile(`\s+`)
	handlePattern     = regexp.MustCompile(`@([a-z0-9_.]{3,25})`)
)

// entityReplacer decodes the handful of entities that show up in meta tags and titles.
// Anything else is left as-is.
var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// DecodeEntities decodes &amp; &lt; &gt; &quot; and &#39;.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityReplacer.Replace(s)
}

// StripTags removes script and style blocks, then every remaining tag, and collapses whitespace.
func StripTags(htmlContent string) string {
	if htmlContent == "" {
		return ""
	}
	content := scriptPattern.ReplaceAllString(htmlContent, " ")
	content = stylePattern.ReplaceAllString(content, " ")
	content = tagPattern.ReplaceAllString(content, " ")
	content = multiSpacePattern.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}

// TextSample returns the first n words of the page's visible text.
func TextSample(htmlContent string, n int) string {
	words := strings.Fields(StripTags(htmlContent))
	if len(words) > n {
		words = words[:n]
	}
	return DecodeEntities(strings.Join(words, " "))
}

// Handles returns every @handle-like token in text, lower-cased, without the @ prefix.
// Duplicates are kept in order of appearance.
func Handles(text string) []string {
	matches := handlePattern.FindAllStringSubmatch(strings.ToLower(text), -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// ResolveURL resolves ref against base. When either cannot be parsed, ref is returned unchanged.
func ResolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// Hostname returns the lower-cased host of rawURL without a leading "www.".
// Unparsable input is returned unchanged so it still works as a grouping key.
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
