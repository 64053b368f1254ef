package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/bigkaa/goartstore/rtf-converter/internal/api/routes"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name    string
		part    formPart
		wantMsg string
	}{
		{
			name:    "с типом содержимого",
			part:    formPart{name: "rtf_file", fileName: "doc.rtf", contentType: "application/rtf", body: "{\\rtf1 hello}"},
			wantMsg: "file name = 'doc.rtf', content type = 'application/rtf', size = '13'",
		},
		{
			name:    "без типа — text/plain",
			part:    formPart{name: "rtf_file", fileName: "doc.rtf", body: "abc"},
			wantMsg: "file name = 'doc.rtf', content type = 'text/plain', size = '3'",
		},
		{
			name:    "пустой документ",
			part:    formPart{name: "rtf_file", fileName: "empty.rtf", contentType: "application/rtf"},
			wantMsg: "file name = 'empty.rtf', content type = 'application/rtf', size = '0'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testMaxUpload)

			rec := env.do(multipartRequest(t, "/convert", tt.part))
			if rec.Code != http.StatusOK {
				t.Fatalf("статус = %d, тело %s", rec.Code, rec.Body.String())
			}
			resp := decodeJSON[routes.ConvertResponse](t, rec)
			if resp.Msg != tt.wantMsg {
				t.Errorf("msg = %q, ожидалось %q", resp.Msg, tt.wantMsg)
			}
		})
	}
}

func TestConvert_Errors(t *testing.T) {
	t.Run("нет rtf_file", func(t *testing.T) {
		env := newTestEnv(t, testMaxUpload)

		rec := env.do(multipartRequest(t, "/convert", formPart{name: "file", fileName: "doc.rtf", body: "x"}))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("статус = %d, ожидалось 400", rec.Code)
		}
		body := decodeError(t, rec)
		if body.Error.Code != "MALFORMED_REQUEST" {
			t.Errorf("code = %q, ожидалось MALFORMED_REQUEST", body.Error.Code)
		}
		if !strings.Contains(body.Error.Message, "rtf_file") {
			t.Errorf("сообщение должно называть поле rtf_file: %q", body.Error.Message)
		}
	})

	t.Run("превышен лимит", func(t *testing.T) {
		env := newTestEnv(t, 256)

		rec := env.do(multipartRequest(t, "/convert",
			formPart{name: "rtf_file", fileName: "big.rtf", body: strings.Repeat("x", 2048)}))
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("статус = %d, ожидалось 413", rec.Code)
		}
	})
}
