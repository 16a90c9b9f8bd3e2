package preview

import (
	"strings"

	"drivelens/internal/domain"
)

// categoryRule is one row of the classification table. Rules are evaluated in
// order and the first match wins.
type categoryRule struct {
	category domain.Category
	match    func(f domain.File, ext string) bool
}

var (
	documentMIMEs = set(domain.MIMEGoogleDoc, domain.MIMEDOCX, domain.MIMEDOC)
	documentExts  = set("doc", "docx")

	spreadsheetMIMEs = set(domain.MIMEGoogleSheet, domain.MIMEXLSX, domain.MIMEXLS, domain.MIMECSV)
	spreadsheetExts  = set("xlsx", "xls", "csv")

	presentationMIMEs = set(domain.MIMEGoogleSlide, domain.MIMEPPTX, domain.MIMEPPT)
	presentationExts  = set("pptx", "ppt")

	archiveExts          = set("zip", "rar", "7z", "tar", "gz")
	archiveMIMEFragments = []string{"zip", "rar", "7z", "tar", "gzip"}
)

var categoryRules = []categoryRule{
	{domain.CategoryFolders, func(f domain.File, _ string) bool { return f.IsFolder() }},
	{domain.CategoryImages, func(f domain.File, _ string) bool { return strings.HasPrefix(f.MIMEType, "image/") }},
	{domain.CategoryVideos, func(f domain.File, _ string) bool { return strings.HasPrefix(f.MIMEType, "video/") }},
	{domain.CategoryAudio, func(f domain.File, _ string) bool { return strings.HasPrefix(f.MIMEType, "audio/") }},
	{domain.CategoryPDFs, func(f domain.File, _ string) bool { return f.MIMEType == domain.MIMEPDF }},
	{domain.CategoryDocuments, isDocument},
	{domain.CategorySpreadsheets, isSpreadsheet},
	{domain.CategoryPresentations, isPresentation},
	{domain.CategoryArchives, isArchive},
}

// Classify maps a file to exactly one category. Unmatched files are "other".
func Classify(f domain.File) domain.Category {
	ext := f.Extension()
	for _, rule := range categoryRules {
		if rule.match(f, ext) {
			return rule.category
		}
	}
	return domain.CategoryOther
}

// CanPreview reports whether the file has an inline preview path. Legacy and
// Office presentation binaries, archives and unknown types must be downloaded.
func CanPreview(f domain.File) bool {
	switch Classify(f) {
	case domain.CategoryImages, domain.CategoryPDFs, domain.CategoryDocuments,
		domain.CategorySpreadsheets, domain.CategoryAudio, domain.CategoryVideos:
		return true
	case domain.CategoryPresentations:
		return f.MIMEType == domain.MIMEGoogleSlide
	case domain.CategoryOther:
		return f.MIMEType == domain.MIMEPlain
	}
	return false
}

func isDocument(f domain.File, ext string) bool {
	return documentMIMEs[f.MIMEType] || documentExts[ext]
}

func isSpreadsheet(f domain.File, ext string) bool {
	return spreadsheetMIMEs[f.MIMEType] || spreadsheetExts[ext]
}

func isPresentation(f domain.File, ext string) bool {
	return presentationMIMEs[f.MIMEType] || presentationExts[ext]
}

func isArchive(f domain.File, ext string) bool {
	if archiveExts[ext] {
		return true
	}
	for _, frag := range archiveMIMEFragments {
		if strings.Contains(f.MIMEType, frag) {
			return true
		}
	}
	return false
}

func isCSV(f domain.File) bool {
	return f.MIMEType == domain.MIMECSV || f.Extension() == "csv"
}

// Filter keeps files matching the category (CategoryAll matches everything)
// whose name contains query, case-insensitively.
func Filter(files []domain.File, category domain.Category, query string) []domain.File {
	query = strings.ToLower(query)
	out := make([]domain.File, 0, len(files))
	for _, f := range files {
		if query != "" && !strings.Contains(strings.ToLower(f.Name), query) {
			continue
		}
		if category != "" && category != domain.CategoryAll && Classify(f) != category {
			continue
		}
		out = append(out, f)
	}
	return out
}

// SuggestedFolders returns folders that are shared or co-owned.
func SuggestedFolders(files []domain.File) []domain.File {
	var out []domain.File
	for _, f := range files {
		if f.IsFolder() && (f.Shared || len(f.Owners) > 1) {
			out = append(out, f)
		}
	}
	return out
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
