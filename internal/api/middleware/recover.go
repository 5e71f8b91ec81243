package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ayo6706/twinvest-bridge/internal/api/problem"
)

// RecoverMiddleware converts panics into problem responses.
func RecoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				fields := append([]zap.Field{
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.Stack("stack"),
				}, TraceFromContext(r.Context()).Fields()...)
				logger.Error("panic recovered", fields...)
				problem.Write(w, r, http.StatusInternalServerError, problem.Type(problem.InternalServerError), http.StatusText(http.StatusInternalServerError), "unexpected server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
