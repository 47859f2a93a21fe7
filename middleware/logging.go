package middleware

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"billpay/web/logger"
	"billpay/web/metrics"
)

// RequestLogger logs every request and records it in m, labelled with the
// mux route template so ids do not explode label cardinality.
func RequestLogger(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snoop := httpsnoop.CaptureMetrics(next, w, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			m.ObserveHTTP(r.Method, route, snoop.Code, snoop.Duration)

			event := logger.Log.Info()
			switch {
			case snoop.Code >= 500:
				event = logger.Log.Error()
			case route == "/health" || route == "/metrics":
				event = logger.Log.Debug()
			}
			event.
				Str("method", r.Method).
				Str("route", route).
				Str("path", r.URL.Path).
				Int("status", snoop.Code).
				Int64("bytes", snoop.Written).
				Dur("duration", snoop.Duration).
				Msg("request")
		})
	}
}
