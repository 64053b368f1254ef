package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/bigkaa/goartstore/rtf-converter/internal/api/errors"
)

// Recoverer перехватывает панику обработчика и отвечает 500 INTERNAL_ERROR.
// http.ErrAbortHandler пробрасывается дальше: net/http обрывает соединение сам.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // сравнение значения паники
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "Паника в обработчике",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("stack", string(debug.Stack())),
				)
				w.Header().Set("Connection", "close")
				apierrors.InternalError(w, "Внутренняя ошибка сервера")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
