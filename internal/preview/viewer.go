package preview

import (
	"fmt"
	"net/url"

	"drivelens/internal/domain"
)

const (
	DefaultDocumentViewerURL = "https://docs.google.com/document/d/%s/preview"
	DefaultSlideViewerURL    = "https://docs.google.com/presentation/d/%s/preview"
)

// Viewer builds embedded viewer URLs. Each template takes the file id as its
// single %s verb.
type Viewer struct {
	DocumentURL string
	SlideURL    string
}

func DefaultViewer() Viewer {
	return Viewer{DocumentURL: DefaultDocumentViewerURL, SlideURL: DefaultSlideViewerURL}
}

// URL returns the viewer URL for a viewer-backed strategy.
func (v Viewer) URL(strategy domain.Strategy, fileID string) (string, error) {
	var tmpl string
	switch strategy {
	case domain.StrategyDocumentViewer:
		tmpl = v.DocumentURL
	case domain.StrategySlideViewer:
		tmpl = v.SlideURL
	default:
		return "", fmt.Errorf("strategy %q has no viewer", strategy)
	}
	if tmpl == "" {
		return "", fmt.Errorf("no viewer configured for %q", strategy)
	}
	return fmt.Sprintf(tmpl, url.PathEscape(fileID)), nil
}
