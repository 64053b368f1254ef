package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigkaa/goartstore/rtf-converter/internal/api/routes"
	"github.com/bigkaa/goartstore/rtf-converter/internal/database"
	"github.com/bigkaa/goartstore/rtf-converter/internal/domain/model"
	"github.com/bigkaa/goartstore/rtf-converter/internal/repository"
	"github.com/bigkaa/goartstore/rtf-converter/internal/service"
)

// testMaxUpload — лимит загрузки в тестах.
const testMaxUpload = 64 << 10

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv — роутер поверх SQLite во временном каталоге.
type testEnv struct {
	router http.Handler
	db     *sql.DB
	repo   repository.FileRepository
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()
	logger := testLogger()
	path := filepath.Join(t.TempDir(), "rc.db")

	if err := database.MigrateSQLite(path, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}
	db, err := database.OpenSQLite(context.Background(), path, logger)
	if err != nil {
		t.Fatalf("Ошибка открытия SQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewSQLiteFileRepository(db)
	h := NewAPIHandler(
		NewHealthHandler(database.NewSQLiteReadinessChecker(db)),
		service.NewTemplateService(repo, logger),
		service.NewConvertService(logger),
		maxUpload,
		logger,
	)
	return &testEnv{router: routes.Handler(h), db: db, repo: repo}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// formPart — часть multipart-тела.
type formPart struct {
	name        string
	fileName    string
	contentType string
	body        string
}

func multipartRequest(t *testing.T, path string, parts ...formPart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := textproto.MIMEHeader{}
		disposition := `form-data; name="` + p.name + `"`
		if p.fileName != "" {
			disposition += `; filename="` + p.fileName + `"`
		}
		h.Set("Content-Disposition", disposition)
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		_, _ = io.WriteString(w, p.body)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart Close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// rtfFile — часть file со 120 байтами RTF.
func rtfFile(name string) formPart {
	return formPart{
		name:        "file",
		fileName:    name,
		contentType: "application/rtf",
		body:        `{\rtf1\ansi ` + strings.Repeat("x", 120-len(`{\rtf1\ansi `)-1) + `}`,
	}
}

// errorResponse — тело ответа ошибки.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("тело ошибки не JSON: %v", err)
	}
	return body
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("ответ не JSON: %v", err)
	}
	return v
}

func uploadTemplate(t *testing.T, env *testEnv, parts ...formPart) routes.TemplateIdentifier {
	t.Helper()
	rec := env.do(multipartRequest(t, "/template", parts...))
	if rec.Code != http.StatusOK {
		t.Fatalf("загрузка: статус %d, тело %s", rec.Code, rec.Body.String())
	}
	return decodeJSON[routes.TemplateIdentifier](t, rec)
}

func httptestGet(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil)
}

func httptestDelete(path string) *http.Request {
	return httptest.NewRequest(http.MethodDelete, path, nil)
}

func modelNoFilter() model.FileConditions {
	return model.FileConditions{}
}
