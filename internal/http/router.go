package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/monitorasaude/api/internal/auth"
	"github.com/monitorasaude/api/internal/config"
	"github.com/monitorasaude/api/internal/db"
	httpmiddleware "github.com/monitorasaude/api/internal/http/middleware"
	"github.com/monitorasaude/api/internal/http/render"
	"github.com/monitorasaude/api/internal/link"
	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/store"
)

// Module registra rotas autenticadas de um domínio.
type Module interface {
	RegisterRoutes(r chi.Router)
}

// PublicModule registra também rotas sem autenticação (login, cadastro).
type PublicModule interface {
	RegisterPublicRoutes(r chi.Router)
}

// Syncer esvazia a fila local e promove a sessão ao remoto.
type Syncer interface {
	Sync(ctx context.Context) (store.FlushResult, error)
}

// Deps reúne o que o roteador precisa. Pool, Redis e Syncer são opcionais.
type Deps struct {
	Config   *config.Config
	Link     *link.Link
	Sessions *auth.Sessions
	Outbox   *store.Outbox
	Syncer   Syncer
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Modules  []Module
}

type Handler struct {
	link          *link.Link
	outbox        *store.Outbox
	syncer        Syncer
	pool          *pgxpool.Pool
	redis         *redis.Client
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	allowOrigins  []string
}

// NewRouter devolve roteador configurado.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	h := &Handler{
		link:          d.Link,
		outbox:        d.Outbox,
		syncer:        d.Syncer,
		pool:          d.Pool,
		redis:         d.Redis,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		allowOrigins:  cfg.AllowOrigins,
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Fail(w, http.StatusNotFound, "NOT_FOUND", "rota não encontrada", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		render.Fail(w, http.StatusMethodNotAllowed, "VALIDATION", "método não permitido", nil)
	})

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)
		public.Get("/taxonomy", h.Taxonomy)

		for _, m := range d.Modules {
			if pm, ok := m.(PublicModule); ok {
				pm.RegisterPublicRoutes(public)
			}
		}
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(d.Sessions))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		for _, m := range d.Modules {
			m.RegisterRoutes(private)
		}

		private.Route("/sync", func(s chi.Router) {
			s.Get("/status", h.SyncStatus)
			s.Get("/ws", h.SyncFeed)
			s.Group(func(admin chi.Router) {
				admin.Use(httpmiddleware.RequireAdmin)
				admin.Post("/flush", h.SyncFlush)
				admin.Post("/offline", h.SyncOffline)
				admin.Post("/online", h.SyncOnline)
			})
		})
	})

	return r
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready informa se a API consegue atender. Sem banco remoto configurado a
// sessão roda local e continua pronta; com remoto fora do ar também, porém
// o modo é reportado.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var redisErr error
	if h.redis != nil {
		redisErr = h.redis.Ping(ctx).Err()
	}

	dbErr := h.link.Ping(ctx)
	if errors.Is(dbErr, link.ErrNotConfigured) {
		dbErr = nil
	}

	if redisErr != nil {
		render.Fail(w, http.StatusServiceUnavailable, "UNAVAILABLE", "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	out := map[string]any{
		"ready": true,
		"mode":  h.link.Status().Mode,
		"db":    errorString(dbErr),
	}
	if h.pool != nil {
		out["pool"] = db.Stats(h.pool)
	}
	render.JSON(w, http.StatusOK, out)
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

type taxonomyResponse struct {
	Categories    []schema.Category    `json:"categories"`
	Subcategories []schema.Subcategory `json:"subcategories"`
	Units         []schema.Unit        `json:"units"`
	Standard      []schema.Indicator   `json:"standardIndicators"`
}

// Taxonomy devolve categorias, subcategorias, unidades e indicadores padrão.
// ?category= restringe as subcategorias.
func (h *Handler) Taxonomy(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, http.StatusOK, taxonomyResponse{
		Categories:    schema.Categories(),
		Subcategories: nonNil(schema.Subcategories(r.URL.Query().Get("category"))),
		Units:         schema.Units(),
		Standard:      schema.StandardIndicators(),
	})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
