// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package publisher locates the full-text PDF link on a publisher landing
// page. Sources are tried in order: the Highwire citation_pdf_url meta tag,
// JSON-LD encoding or distribution entries with a PDF content type, then
// anchors typed application/pdf or ending in ".pdf".
package publisher

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

const pdfType = "application/pdf"

// FindPDF returns the absolute PDF URL found in html, resolved against
// baseURL (the page's final URL after redirects). It returns "" when the
// page has no PDF link or cannot be parsed.
func FindPDF(html, baseURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	for _, find := range []func(*goquery.Document) string{metaPDF, jsonLDPDF, anchorPDF} {
		if href := find(doc); href != "" {
			if abs := resolve(baseURL, href); abs != "" {
				return abs
			}
		}
	}
	return ""
}

func metaPDF(doc *goquery.Document) string {
	var href string
	doc.Find(`meta[name="citation_pdf_url"], meta[property="citation_pdf_url"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href = strings.TrimSpace(s.AttrOr("content", ""))
		return href == ""
	})
	return href
}

func jsonLDPDF(doc *goquery.Document) string {
	var href string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		body := s.Text()
		if !gjson.Valid(body) {
			return true
		}
		href = pdfFromJSONLD(gjson.Parse(body))
		return href == ""
	})
	return href
}

// pdfFromJSONLD searches a JSON-LD node (or @graph / array of nodes) for an
// encoding or distribution entry with a PDF content type.
func pdfFromJSONLD(node gjson.Result) string {
	if node.IsArray() {
		for _, n := range node.Array() {
			if u := pdfFromJSONLD(n); u != "" {
				return u
			}
		}
		return ""
	}
	if g := node.Get("@graph"); g.Exists() {
		if u := pdfFromJSONLD(g); u != "" {
			return u
		}
	}
	for _, key := range []string{"encoding", "distribution"} {
		entries := node.Get(key)
		list := entries.Array()
		if entries.IsObject() {
			list = []gjson.Result{entries}
		}
		for _, e := range list {
			format := strings.ToLower(e.Get("encodingFormat").String() + e.Get("fileFormat").String())
			if !strings.Contains(format, pdfType) {
				continue
			}
			if u := e.Get("contentUrl").String(); u != "" {
				return u
			}
			if u := e.Get("url").String(); u != "" {
				return u
			}
		}
	}
	return ""
}

func anchorPDF(doc *goquery.Document) string {
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		h := strings.TrimSpace(s.AttrOr("href", ""))
		typ := strings.ToLower(s.AttrOr("type", ""))
		if typ == pdfType || hasPDFSuffix(h) {
			href = h
			return false
		}
		return true
	})
	return href
}

func hasPDFSuffix(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

func resolve(baseURL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.Scheme == "javascript" || ref.Scheme == "mailto" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		if ref.IsAbs() {
			return ref.String()
		}
		return ""
	}
	return base.ResolveReference(ref).String()
}
