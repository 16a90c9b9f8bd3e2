package domain

import "time"

// Strategy is the method chosen to materialize a preview.
type Strategy string

const (
	StrategyNone           Strategy = ""
	StrategyDocumentViewer Strategy = "embedded-document-viewer"
	StrategySlideViewer    Strategy = "embedded-slide-viewer"
	StrategyPDFInline      Strategy = "pdf-inline"
	StrategyImageInline    Strategy = "image-inline"
	StrategyTableCSV       Strategy = "table-csv"
	StrategyTableExportCSV Strategy = "table-export-csv"
	StrategyTableWorkbook  Strategy = "table-workbook"
	StrategyVideoInline    Strategy = "video-inline"
	StrategyAudioInline    Strategy = "audio-inline"
	StrategyTextInline     Strategy = "text-inline"
	StrategyUnsupported    Strategy = "unsupported"
)

// AllocatesResource reports whether the strategy hands out a revocable
// resource reference.
func (s Strategy) AllocatesResource() bool {
	switch s {
	case StrategyPDFInline, StrategyImageInline, StrategyVideoInline, StrategyAudioInline:
		return true
	}
	return false
}

type PreviewStatus string

const (
	PreviewIdle    PreviewStatus = "idle"
	PreviewLoading PreviewStatus = "loading"
	PreviewReady   PreviewStatus = "ready"
	PreviewError   PreviewStatus = "error"
)

// Payload is the render-ready result. Exactly one of Text, Table or URL is set.
type Payload struct {
	Text        string     `json:"text,omitempty"`
	Table       [][]string `json:"table,omitempty"`
	URL         string     `json:"url,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
}

// PreviewSnapshot is a read-only copy of the live preview session.
type PreviewSnapshot struct {
	Generation   uint64        `json:"generation"`
	File         *File         `json:"file,omitempty"`
	Strategy     Strategy      `json:"strategy,omitempty"`
	Status       PreviewStatus `json:"status"`
	Payload      *Payload      `json:"payload,omitempty"`
	ErrorKind    ErrorKind     `json:"error_kind,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	StartedAt    time.Time     `json:"started_at,omitempty"`
}
