// Package page turns a fetched HTML document into a structured Summary.
package page

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeGROOVE-dev/gifted/pkg/htmlutil"
)

// Person holds the fields of a schema.org Person found in JSON-LD.
type Person struct {
	Name            string `json:"name,omitempty"`
	JobTitle        string `json:"jobTitle,omitempty"`
	AddressLocality string `json:"addressLocality,omitempty"`
}

// Summary is the structured view of a single fetched page.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Summary struct {
	URL         string   `json:"url,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
	TextSample  string   `json:"textSample,omitempty"`
	Links       []string `json:"links"`   // Absolute, deduplicated, sorted
	SameAs      []string `json:"sameAs"`  // Identity links asserted by JSON-LD
	Handles     []string `json:"handles"` // @handles from title, description and text
	Person      *Person  `json:"person,omitempty"`
}

// Text returns the lower-cased free text of the page: title, description and text sample.
func (s *Summary) Text() string {
	if s == nil {
		return ""
	}
	return strings.ToLower(s.Title + " " + s.Description + " " + s.TextSample)
}

// Extract builds a Summary from raw HTML. It never fails: anything that cannot be parsed
// is left empty.
func Extract(html, baseURL string) *Summary {
	s := &Summary{
		URL:        baseURL,
		TextSample: htmlutil.TextSample(html, htmlutil.SampleWords),
		Links:      []string{},
		SameAs:     []string{},
		Handles:    []string{},
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		s.Title = firstNonEmpty(metaProperty(doc, "og:title"), doc.Find("title").First().Text())
		s.Description = firstNonEmpty(metaName(doc, "description"), metaProperty(doc, "og:description"))
		s.Image = metaProperty(doc, "og:image")
		s.Links = links(doc, baseURL)
		s.SameAs, s.Person = jsonLD(doc)
	}

	s.Handles = append(s.Handles, htmlutil.Handles(s.Title+" "+s.Description+" "+s.TextSample)...)
	return s
}

func metaProperty(doc *goquery.Document, property string) string {
	return metaContent(doc, "property", property)
}

func metaName(doc *goquery.Document, name string) string {
	return metaContent(doc, "name", name)
}

// metaContent returns the content of the first meta tag whose attr equals value, case-insensitively.
func metaContent(doc *goquery.Document, attr, value string) string {
	var content string
	doc.Find("meta").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		v, ok := sel.Attr(attr)
		if !ok || !strings.EqualFold(strings.TrimSpace(v), value) {
			return true
		}
		c, ok := sel.Attr("content")
		if !ok || strings.TrimSpace(c) == "" {
			return true
		}
		content = c
		return false
	})
	return clean(content)
}

func links(doc *goquery.Document, baseURL string) []string {
	seen := make(map[string]bool)
	out := []string{}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href") //nolint:errcheck // selector guarantees the attribute
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		u := htmlutil.ResolveURL(baseURL, href)
		if seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	})
	slices.Sort(out)
	return out
}

// jsonLD walks every ld+json block, collecting sameAs links and the most specific Person fields.
func jsonLD(doc *goquery.Document) ([]string, *Person) {
	sameAs := []string{}
	var person *Person

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(strings.TrimSpace(sel.Text())), &raw); err != nil {
			return
		}
		for _, obj := range objects(raw) {
			if !isPerson(obj["@type"]) {
				continue
			}
			sameAs = append(sameAs, stringList(obj["sameAs"])...)
			p := personFrom(obj)
			if person == nil {
				person = &Person{}
			}
			if p.Name != "" {
				person.Name = p.Name
			}
			if p.JobTitle != "" {
				person.JobTitle = p.JobTitle
			}
			if p.AddressLocality != "" {
				person.AddressLocality = p.AddressLocality
			}
		}
	})

	return sameAs, person
}

// objects flattens a decoded JSON-LD value into its top-level objects, including @graph members.
func objects(v any) []map[string]any {
	var out []map[string]any
	switch t := v.(type) {
	case map[string]any:
		out = append(out, t)
		if g, ok := t["@graph"]; ok {
			out = append(out, objects(g)...)
		}
	case []any:
		for _, item := range t {
			out = append(out, objects(item)...)
		}
	default:
	}
	return out
}

func isPerson(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "Person"
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "Person" {
				return true
			}
		}
	default:
	}
	return false
}

func personFrom(obj map[string]any) Person {
	p := Person{
		Name:     decoded(obj["name"]),
		JobTitle: decoded(obj["jobTitle"]),
	}
	if addr, ok := obj["address"].(map[string]any); ok {
		p.AddressLocality = decoded(addr["addressLocality"])
	}
	if p.AddressLocality == "" {
		if home, ok := obj["homeLocation"].(map[string]any); ok {
			p.AddressLocality = decoded(home["name"])
		}
	}
	return p
}

func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if t = strings.TrimSpace(t); t != "" {
			return []string{t}
		}
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	default:
	}
	return nil
}

func str(v any) string {
	s, _ := v.(string) //nolint:errcheck // non-strings become ""
	return s
}

// clean trims goquery output, which is already entity-decoded.
func clean(s string) string {
	return strings.TrimSpace(s)
}

// decoded reads a JSON-LD string. Script bodies are raw text, so entities are still encoded.
func decoded(v any) string {
	return strings.TrimSpace(htmlutil.DecodeEntities(str(v)))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = clean(v); v != "" {
			return v
		}
	}
	return ""
}
