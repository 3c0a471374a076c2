package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/autosmm/internal/importer"
	"github.com/hitoshi/autosmm/internal/middleware"
)

// ImporterInterface はインポートハンドラーが必要とするインターフェース。
type ImporterInterface interface {
	Import(ctx context.Context, rawURL string) (*importer.Result, error)
}

// ImportHandler はRSS/Atomからの下書きインポートのHTTPハンドラー。
type ImportHandler struct {
	importer ImporterInterface
}

// NewImportHandler はImportHandlerを生成する。
func NewImportHandler(im ImporterInterface) *ImportHandler {
	return &ImportHandler{importer: im}
}

type importRequest struct {
	URL string `json:"url"`
}

// Import はURLからフィードを検出し、投稿の下書き候補を返す。候補は保存しない。
// POST /api/posts/import
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req importRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	result, err := h.importer.Import(r.Context(), req.URL)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toImportResponse(result))
}
