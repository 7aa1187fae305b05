package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/monitorasaude/api/internal/auth"
)

type holderKey struct{}

// sessionHolder é preenchido por Auth, que roda depois de Logging na cadeia.
type sessionHolder struct {
	role    string
	subject string
}

func noteSession(ctx context.Context, s auth.Session) {
	if h, ok := ctx.Value(holderKey{}).(*sessionHolder); ok {
		h.role, h.subject = s.Role, s.Subject
	}
}

// RequestLogger devolve o logger da requisição (com request_id) ou o global.
func RequestLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// Logging registra uma linha por requisição. O nível acompanha o status.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		reqLog := log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		holder := &sessionHolder{}
		ctx := context.WithValue(reqLog.WithContext(r.Context()), holderKey{}, holder)

		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = reqLog.Error()
		case status >= 400:
			ev = reqLog.Warn()
		default:
			ev = reqLog.Info()
		}

		ev = ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("ip", clientIP(r))
		if holder.subject != "" {
			ev = ev.Str("role", holder.role).Str("subject", holder.subject)
		}
		ev.Msg("http_request")
	})
}
