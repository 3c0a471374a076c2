package handler

import (
	"net/http"

	"github.com/hitoshi/autosmm/internal/model"
)

// ListPlans は料金表のプラン一覧を返す。認証不要。
// GET /api/plans
func ListPlans(w http.ResponseWriter, r *http.Request) {
	plans := model.Plans()
	resp := make([]planResponse, len(plans))
	for i, p := range plans {
		resp[i] = toPlanResponse(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plans":       resp,
		"upgrade_url": model.UpgradePath,
	})
}
