package services

import (
	"strings"

	"github.com/Lllllllleong/pdfrebrand/internal/contact"
	"github.com/Lllllllleong/pdfrebrand/internal/models"
)

// maxTitleRunes bounds a title taken from the raw text layer.
const maxTitleRunes = 100

// CanonicalContact detects the single contact record used for every page.
// The raw text corpus is authoritative; fields it lacks are filled from
// the contact blocks the structurer returned.
func CanonicalContact(pages models.PageText, structured []*models.StructuredPageContent) models.ContactInfo {
	info := contact.Detect(strings.Join(pages, "\n"))

	var blocks []string
	for _, s := range structured {
		if s.Usable() && s.ContactBlock != "" {
			blocks = append(blocks, s.ContactBlock)
		}
	}
	if len(blocks) > 0 {
		info = contact.Merge(info, contact.Detect(strings.Join(blocks, "\n")))
	}
	return info
}

// Assemble fuses each page's structured or raw content into a rendering
// ready record. structured[i], when present and usable, belongs to page
// i+1. The result has one record per page, or a single placeholder record
// when there are no pages.
func Assemble(pages models.PageText, structured []*models.StructuredPageContent, info models.ContactInfo) []models.FinalPageRecord {
	block := info.String()

	if len(pages) == 0 {
		title := models.UntitledPlaceholder
		if s := structuredAt(structured, 0); s.Usable() && s.Title != "" {
			title = truncateRunes(contact.Redact(s.Title, info), maxTitleRunes)
		}
		return []models.FinalPageRecord{{
			PageNumber:  1,
			Title:       title,
			MainData:    models.NoContentPlaceholder,
			ContactInfo: block,
		}}
	}

	records := make([]models.FinalPageRecord, len(pages))
	for i, raw := range pages {
		rec := models.FinalPageRecord{PageNumber: i + 1, ContactInfo: block}

		s := structuredAt(structured, i)
		if s.Usable() {
			rec.MainData = contact.Redact(s.Body, info)
			rec.Structured = true
			if i > 0 && s.Title != "" {
				rec.Title = strings.TrimSpace(contact.Redact(s.Title, info))
			}
		} else {
			rec.MainData = contact.Redact(raw, info)
		}

		rec.MainData = strings.TrimSpace(rec.MainData)
		if rec.MainData == "" {
			rec.MainData = models.NoContentPlaceholder
		}
		records[i] = rec
	}

	records[0].Title = documentTitle(pages[0], structuredAt(structured, 0), info)
	return records
}

// documentTitle picks page 1's structured title, else the first non-empty
// line of its raw text, else the placeholder.
func documentTitle(raw string, s *models.StructuredPageContent, info models.ContactInfo) string {
	if s.Usable() {
		if t := strings.TrimSpace(contact.Redact(s.Title, info)); t != "" {
			return truncateRunes(t, maxTitleRunes)
		}
	}
	for _, line := range strings.Split(contact.Redact(raw, info), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return truncateRunes(line, maxTitleRunes)
		}
	}
	return models.UntitledPlaceholder
}

// Summarize builds the extraction summary returned with the document.
func Summarize(records []models.FinalPageRecord, info models.ContactInfo) models.Summary {
	bodies := make([]string, 0, len(records))
	for _, r := range records {
		if r.MainData != models.NoContentPlaceholder {
			bodies = append(bodies, r.MainData)
		}
	}
	title := models.UntitledPlaceholder
	if len(records) > 0 && records[0].Title != "" {
		title = records[0].Title
	}
	return models.Summary{
		Title:       title,
		Body:        strings.Join(bodies, "\n\n"),
		ContactInfo: info.String(),
		PageCount:   len(records),
	}
}

func structuredAt(structured []*models.StructuredPageContent, i int) *models.StructuredPageContent {
	if i < len(structured) {
		return structured[i]
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
