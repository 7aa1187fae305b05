// Package app monta os serviços da API a partir da configuração. É usado pelo
// servidor HTTP e pela CLI de operação.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/monitorasaude/api/internal/account"
	"github.com/monitorasaude/api/internal/auth"
	"github.com/monitorasaude/api/internal/config"
	"github.com/monitorasaude/api/internal/db"
	"github.com/monitorasaude/api/internal/doctor"
	"github.com/monitorasaude/api/internal/hospital"
	internalhttp "github.com/monitorasaude/api/internal/http"
	"github.com/monitorasaude/api/internal/indicator"
	"github.com/monitorasaude/api/internal/link"
	"github.com/monitorasaude/api/internal/localstore"
	"github.com/monitorasaude/api/internal/mail"
	"github.com/monitorasaude/api/internal/metadata"
	"github.com/monitorasaude/api/internal/monitor"
	"github.com/monitorasaude/api/internal/patient"
	"github.com/monitorasaude/api/internal/profile"
	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/sharing"
	"github.com/monitorasaude/api/internal/storage"
	"github.com/monitorasaude/api/internal/store"
)

// App reúne as dependências de uma sessão do processo.
type App struct {
	Config   *config.Config
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Link     *link.Link
	KV       localstore.KV
	Registry *store.Registry
	Sessions *auth.Sessions

	Accounts   *account.Service
	Hospitals  *hospital.Service
	Doctors    *doctor.Service
	Patients   *patient.Service
	Sharing    *sharing.Service
	Indicators *indicator.Service
	Profiles   *profile.Service
	Metadata   *metadata.Service
	Monitor    *monitor.Service
}

// New conecta (ou não) ao remoto, escolhe o armazenamento local e cria os serviços.
// Remoto fora do ar não impede a subida: a sessão decide o modo no primeiro uso.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	logger := log.With().Str("component", "app").Logger()

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis parse: %w", err)
		}
		a.Redis = redis.NewClient(opts)
	}

	var pinger link.Pinger
	var querier store.Querier
	if cfg.RemoteConfigured() {
		pool, err := db.NewPool(ctx, cfg.DBDSN, cfg.DBMaxConns, cfg.DBMinConns)
		if pool == nil {
			a.Close()
			return nil, fmt.Errorf("db: %w", err)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("remoto indisponível na inicialização")
		}
		a.Pool = pool
		pinger = pool
		querier = pool
	}

	a.Link = link.New(pinger, link.Options{
		HealthTimeout: cfg.Link.HealthTimeout,
		RetryAttempts: cfg.Link.RetryAttempts,
		RetryInitial:  cfg.Link.RetryInitial,
		RetryMax:      cfg.Link.RetryMax,
	})

	kv, err := openKV(cfg, a.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.KV = kv

	outbox := store.NewOutbox(kv, a.Link.SetPending)
	pending, err := outbox.Pending(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("fila local: %w", err)
	}
	// precisa estar definido antes da primeira decisão de modo
	a.Link.SetPending(pending)
	a.Registry = store.NewRegistry(outbox)

	var sessionStore auth.SessionStore = auth.NewMemorySessionStore()
	if a.Redis != nil {
		sessionStore = auth.NewRedisSessionStore(a.Redis)
	}
	a.Sessions = auth.NewSessions(sessionStore, auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL), cfg.SessionTTL)

	mailer, err := mail.New(cfg.Mail)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("mail: %w", err)
	}
	uploader, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	deps := store.Deps{Link: a.Link, KV: kv, DB: querier, Registry: a.Registry}
	users := store.Open(deps, schema.Users)
	admins := store.Open(deps, schema.Admins)
	hospitals := store.Open(deps, schema.Hospitals)
	patients := store.Open(deps, schema.Patients)
	values := store.Open(deps, schema.IndicatorValues)

	a.Accounts = account.NewService(users, admins, a.Sessions, mailer, account.Options{
		ResetURL: cfg.Mail.ResetURL,
		ResetTTL: cfg.Mail.ResetTTL,
	})
	a.Hospitals = hospital.NewService(hospitals, users, a.Sessions)
	a.Doctors = doctor.NewService(users, patients, a.Accounts, a.Hospitals)
	a.Sharing = sharing.NewService(store.Open(deps, schema.Sharing), users)
	a.Patients = patient.NewService(patient.Stores{
		Patients: patients,
		Users:    users,
		Personal: store.Open(deps, schema.PersonalDataSet),
		Medical:  store.Open(deps, schema.MedicalDataSet),
		Values:   values,
	}, a.Sharing)
	a.Indicators = indicator.NewService(store.Open(deps, schema.Indicators), values, a.Sharing)
	a.Profiles = profile.NewService(store.Open(deps, schema.ProfileImages), uploader)
	a.Metadata = metadata.NewService(store.Open(deps, schema.MetadataContexts), store.Open(deps, schema.MetadataDataTypes))

	a.Monitor = monitor.NewService(a.Link, a.Registry, cfg.Monitoring,
		log.With().Str("component", "monitor").Logger(),
		monitor.NewNotifier(cfg.Monitoring.SlackWebhookURL))

	return a, nil
}

func openKV(cfg *config.Config, client *redis.Client) (localstore.KV, error) {
	switch cfg.LocalStore {
	case "memory":
		return localstore.NewMemoryKV(), nil
	case "redis":
		return localstore.NewRedisKV(client), nil
	default:
		kv, err := localstore.NewFileKV(cfg.LocalStorePath)
		if err != nil {
			return nil, fmt.Errorf("armazenamento local: %w", err)
		}
		return kv, nil
	}
}

// Seed grava os indicadores padrão.
func (a *App) Seed(ctx context.Context) error {
	return a.Indicators.EnsureStandard(ctx)
}

// Router monta o roteador HTTP com todos os domínios.
func (a *App) Router() http.Handler {
	return internalhttp.NewRouter(internalhttp.Deps{
		Config:   a.Config,
		Link:     a.Link,
		Sessions: a.Sessions,
		Outbox:   a.Registry.Outbox(),
		Syncer:   a.Monitor,
		Pool:     a.Pool,
		Redis:    a.Redis,
		Modules: []internalhttp.Module{
			account.NewHandler(a.Accounts),
			hospital.NewHandler(a.Hospitals),
			doctor.NewHandler(a.Doctors),
			patient.NewHandler(a.Patients),
			indicator.NewHandler(a.Indicators, a.Patients),
			sharing.NewHandler(a.Sharing),
			profile.NewHandler(a.Profiles),
			metadata.NewHandler(a.Metadata),
		},
	})
}

// Close libera conexões.
func (a *App) Close() {
	if a.Monitor != nil {
		a.Monitor.Stop()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}
