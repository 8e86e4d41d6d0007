package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/shivortex/lead-scraper/internal/model"
	"github.com/shivortex/lead-scraper/internal/query"
)

// fieldDetail is one entry of a 422 response body.
type fieldDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeInvalid reports field errors. Paging fields are always typed
// invalid_pagination, even inside an invalid_filter response.
func writeInvalid(w http.ResponseWriter, kind query.Kind, fields []model.FieldError) {
	details := make([]fieldDetail, 0, len(fields))
	for _, f := range fields {
		t := kind
		if f.Field == "page" || f.Field == "page_size" {
			t = query.KindInvalidPagination
		}
		details = append(details, fieldDetail{
			Loc:  []string{"query", f.Field},
			Msg:  f.Message,
			Type: string(t),
		})
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": details})
}
