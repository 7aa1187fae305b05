package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port            int
	DBDSN           string
	DBMaxConns      int32
	DBMinConns      int32
	RedisURL        string
	LocalStore      string
	LocalStorePath  string
	JWTAccessTTL    time.Duration
	SessionTTL      time.Duration
	JWTSecret       string
	AllowOrigins    []string
	RateLimitPublic RateLimitConfig
	RateLimitAuth   RateLimitConfig
	Link            LinkConfig
	Monitoring      MonitoringConfig
	Mail            MailConfig
	Storage         StorageConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LinkConfig controla a decisão de conectividade com o banco remoto.
type LinkConfig struct {
	HealthTimeout time.Duration
	RetryAttempts int
	RetryInitial  time.Duration
	RetryMax      time.Duration
}

// MonitoringConfig controla o vigia de conectividade.
type MonitoringConfig struct {
	Enabled         bool
	Interval        time.Duration
	SlackWebhookURL string
}

// MailConfig descreve o provedor de e-mail transacional.
type MailConfig struct {
	Provider     string
	APIURL       string
	APIKey       string
	From         string
	FromName     string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	ResetURL     string
	ResetTTL     time.Duration
}

// StorageConfig descreve o armazenamento de imagens de perfil.
type StorageConfig struct {
	Provider    string
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

// RemoteConfigured indica se há banco remoto configurado.
func (c *Config) RemoteConfigured() bool {
	return c.DBDSN != ""
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	port, err := parseIntEnv("PORT", 8080)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = strings.TrimSpace(getEnv("DB_DSN", ""))
	maxConns, err := parseIntEnv("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	minConns, err := parseIntEnv("DB_MIN_CONNS", 1)
	if err != nil {
		return nil, err
	}
	cfg.DBMaxConns = int32(maxConns)
	cfg.DBMinConns = int32(minConns)

	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", ""))

	cfg.LocalStore = strings.ToLower(strings.TrimSpace(getEnv("LOCAL_STORE", "file")))
	switch cfg.LocalStore {
	case "memory", "file":
	case "redis":
		if cfg.RedisURL == "" {
			return nil, errors.New("LOCAL_STORE=redis exige REDIS_URL")
		}
	default:
		return nil, errors.New("LOCAL_STORE inválido")
	}
	cfg.LocalStorePath = strings.TrimSpace(getEnv("LOCAL_STORE_PATH", "./data"))

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = parseDurationEnv("SESSION_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}

	allowOrigins := strings.Split(getEnv("ALLOW_ORIGINS", ""), ",")
	for _, origin := range allowOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 10, Burst: 40}

	if cfg.Link, err = loadLink(); err != nil {
		return nil, err
	}

	interval, err := parseDurationEnv("MONITOR_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Monitoring = MonitoringConfig{
		Enabled:         cfg.RemoteConfigured(),
		Interval:        interval,
		SlackWebhookURL: strings.TrimSpace(getEnv("SLACK_WEBHOOK_URL", "")),
	}

	if cfg.Mail, err = loadMail(); err != nil {
		return nil, err
	}

	if cfg.Storage, err = loadStorage(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadLink() (LinkConfig, error) {
	var (
		l   LinkConfig
		err error
	)
	if l.HealthTimeout, err = parseDurationEnv("LINK_HEALTH_TIMEOUT", 3*time.Second); err != nil {
		return l, err
	}
	if l.RetryAttempts, err = parseIntEnv("LINK_RETRY_ATTEMPTS", 3); err != nil {
		return l, err
	}
	if l.RetryAttempts < 1 {
		return l, errors.New("LINK_RETRY_ATTEMPTS deve ser >= 1")
	}
	if l.RetryInitial, err = parseDurationEnv("LINK_RETRY_INITIAL", 100*time.Millisecond); err != nil {
		return l, err
	}
	if l.RetryMax, err = parseDurationEnv("LINK_RETRY_MAX", 2*time.Second); err != nil {
		return l, err
	}
	return l, nil
}

func loadMail() (MailConfig, error) {
	m := MailConfig{
		Provider:     strings.ToLower(strings.TrimSpace(getEnv("MAIL_PROVIDER", "log"))),
		APIURL:       strings.TrimRight(strings.TrimSpace(getEnv("MAIL_API_URL", "https://api.resend.com")), "/"),
		APIKey:       strings.TrimSpace(getEnv("MAIL_API_KEY", "")),
		From:         strings.TrimSpace(getEnv("MAIL_FROM", "nao-responda@monitorasaude.com.br")),
		FromName:     strings.TrimSpace(getEnv("MAIL_FROM_NAME", "Monitora Saúde")),
		SMTPHost:     strings.TrimSpace(getEnv("SMTP_HOST", "")),
		SMTPUser:     strings.TrimSpace(getEnv("SMTP_USER", "")),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		ResetURL:     strings.TrimSpace(getEnv("RESET_URL", "http://localhost:5173/redefinir-senha")),
	}

	port, err := parseIntEnv("SMTP_PORT", 587)
	if err != nil {
		return m, err
	}
	m.SMTPPort = port

	if m.ResetTTL, err = parseDurationEnv("RESET_TTL", time.Hour); err != nil {
		return m, err
	}

	switch m.Provider {
	case "log":
	case "http":
		if m.APIKey == "" {
			return m, errors.New("MAIL_API_KEY obrigatório para MAIL_PROVIDER=http")
		}
	case "smtp":
		if m.SMTPHost == "" {
			return m, errors.New("SMTP_HOST obrigatório para MAIL_PROVIDER=smtp")
		}
	default:
		return m, errors.New("MAIL_PROVIDER inválido")
	}
	return m, nil
}

func loadStorage() (StorageConfig, error) {
	s := StorageConfig{
		Provider:    strings.ToLower(strings.TrimSpace(getEnv("STORAGE_PROVIDER", "noop"))),
		S3Endpoint:  strings.TrimSpace(getEnv("S3_ENDPOINT", "")),
		S3Region:    strings.TrimSpace(getEnv("S3_REGION", "auto")),
		S3Bucket:    strings.TrimSpace(getEnv("S3_BUCKET", "")),
		S3AccessKey: strings.TrimSpace(getEnv("S3_ACCESS_KEY", "")),
		S3SecretKey: strings.TrimSpace(getEnv("S3_SECRET_KEY", "")),
		S3PublicURL: strings.TrimSpace(getEnv("S3_PUBLIC_URL", "")),
	}
	switch s.Provider {
	case "", "noop":
		s.Provider = "noop"
	case "s3", "r2":
		if s.S3Bucket == "" {
			return s, errors.New("S3_BUCKET obrigatório")
		}
	default:
		return s, errors.New("STORAGE_PROVIDER inválido")
	}
	return s, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseIntEnv(key string, def int) (int, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return n, nil
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}
