package httpapi

import (
	"net/http"

	"github.com/tinoosan/finman/internal/dictionary"
)

// GET /dictionary/categories?direction=
func (s *Server) getCategoriesDictionary(w http.ResponseWriter, r *http.Request) {
	var d *dictionary.Direction
	switch raw := dictionary.Direction(r.URL.Query().Get("direction")); raw {
	case "":
	case dictionary.DirectionIncome, dictionary.DirectionExpense:
		d = &raw
	default:
		badRequest(w, "direction must be income or expense")
		return
	}
	out := struct {
		Items []dictionary.CategoryDef `json:"items"`
	}{Items: dictionary.CategoriesFor(d)}
	toJSON(w, http.StatusOK, out)
}
