package handler

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"drivelens/internal/logging"
	"drivelens/internal/service"
)

type DownloadHandler struct {
	downloads *service.DownloadService
}

func NewDownloadHandler(downloads *service.DownloadService) *DownloadHandler {
	return &DownloadHandler{downloads: downloads}
}

// Download streams the posted file as an attachment.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	dl, err := h.downloads.Open(r.Context(), req.File, credential(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer dl.Body.Close()

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", contentDisposition(dl.FileName))
	if dl.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, dl.Body); err != nil {
		logging.WithContext(r.Context()).Warn("download interrupted",
			zap.String("file_id", req.File.ID), zap.Error(err))
	}
}

func contentDisposition(name string) string {
	ascii := strings.ReplaceAll(name, `"`, `\"`)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, ascii, url.PathEscape(name))
}
