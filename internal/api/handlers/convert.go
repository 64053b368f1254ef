package handlers

import (
	"net/http"

	"github.com/bigkaa/goartstore/rtf-converter/internal/api/form"
	"github.com/bigkaa/goartstore/rtf-converter/internal/api/routes"
)

// Convert — POST /convert.
// Принимает multipart-поле rtf_file и возвращает сводку по документу.
func (h *APIHandler) Convert(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)

	req, err := form.ParseConvertUpload(r)
	if err != nil {
		h.writeError(w, r, "Ошибка приёма документа", err)
		return
	}

	msg := h.converter.Convert(r.Context(), req)
	writeJSON(w, http.StatusOK, routes.ConvertResponse{Msg: msg})
}
