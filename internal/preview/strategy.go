package preview

import (
	"strings"

	"drivelens/internal/domain"
)

type strategyRule struct {
	strategy domain.Strategy
	match    func(f domain.File) bool
}

// strategyRules is evaluated top to bottom. Viewer-backed formats come first so
// a DOCX or native document never falls through to a byte fetch.
var strategyRules = []strategyRule{
	{domain.StrategyUnsupported, domain.File.IsFolder},
	{domain.StrategyDocumentViewer, func(f domain.File) bool { return isDocument(f, f.Extension()) }},
	{domain.StrategySlideViewer, func(f domain.File) bool { return isPresentation(f, f.Extension()) }},
	{domain.StrategyPDFInline, func(f domain.File) bool {
		return f.MIMEType == domain.MIMEPDF || f.Extension() == "pdf"
	}},
	{domain.StrategyImageInline, hasMIMEPrefix("image/")},
	{domain.StrategyTableCSV, func(f domain.File) bool { return isSpreadsheet(f, f.Extension()) && isCSV(f) }},
	{domain.StrategyTableExportCSV, func(f domain.File) bool { return f.MIMEType == domain.MIMEGoogleSheet }},
	{domain.StrategyTableWorkbook, func(f domain.File) bool { return isSpreadsheet(f, f.Extension()) }},
	{domain.StrategyVideoInline, hasMIMEPrefix("video/")},
	{domain.StrategyAudioInline, hasMIMEPrefix("audio/")},
	{domain.StrategyTextInline, func(f domain.File) bool { return f.MIMEType == domain.MIMEPlain }},
}

// SelectStrategy picks the preview strategy for f. It does not apply the
// CanPreview gate; callers check that first.
func SelectStrategy(f domain.File) domain.Strategy {
	for _, rule := range strategyRules {
		if rule.match(f) {
			return rule.strategy
		}
	}
	return domain.StrategyUnsupported
}

func hasMIMEPrefix(prefix string) func(domain.File) bool {
	return func(f domain.File) bool {
		return strings.HasPrefix(f.MIMEType, prefix)
	}
}
