package domain

import "fmt"

type Category string

const (
	CategoryAll           Category = "all"
	CategoryFolders       Category = "folders"
	CategoryImages        Category = "images"
	CategoryVideos        Category = "videos"
	CategoryAudio         Category = "audio"
	CategoryPDFs          Category = "pdfs"
	CategoryDocuments     Category = "documents"
	CategorySpreadsheets  Category = "spreadsheets"
	CategoryPresentations Category = "presentations"
	CategoryArchives      Category = "archives"
	CategoryOther         Category = "other"
)

// Categories lists every value Classify can return.
var Categories = []Category{
	CategoryFolders,
	CategoryImages,
	CategoryVideos,
	CategoryAudio,
	CategoryPDFs,
	CategoryDocuments,
	CategorySpreadsheets,
	CategoryPresentations,
	CategoryArchives,
	CategoryOther,
}

// ParseCategory accepts any classifier category plus "all"; "" means all.
func ParseCategory(s string) (Category, error) {
	if s == "" || s == string(CategoryAll) {
		return CategoryAll, nil
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}
