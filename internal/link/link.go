// Package link decide, uma vez por sessão do processo, se os dados vivem no
// banco remoto ou no armazenamento local, e mantém essa decisão até que uma
// falha a invalide ou o vigia promova o retorno ao remoto.
package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Mode é a fonte de dados fixada para a sessão.
type Mode string

const (
	ModeUnknown Mode = "unknown"
	ModeRemote  Mode = "remote"
	ModeLocal   Mode = "local"
)

var (
	// ErrNotConfigured indica ausência de banco remoto.
	ErrNotConfigured = errors.New("banco remoto não configurado")
	// ErrRemoteUnavailable indica falha remota persistente após as tentativas.
	ErrRemoteUnavailable = errors.New("banco remoto indisponível")
	// ErrForcedLocal indica que um operador fixou o modo local.
	ErrForcedLocal = errors.New("modo local forçado")

	errPendingSync = errors.New("fila local pendente de sincronização")
)

// Pinger verifica a saúde do banco remoto. *pgxpool.Pool satisfaz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options controla health check e retentativas.
type Options struct {
	HealthTimeout time.Duration
	RetryAttempts int
	RetryInitial  time.Duration
	RetryMax      time.Duration
}

// Status é o estado visível de sincronização.
type Status struct {
	Mode       Mode       `json:"mode"`
	Configured bool       `json:"configured"`
	Forced     bool       `json:"forced"`
	CheckedAt  *time.Time `json:"checkedAt,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
	Pending    int        `json:"pending"`
	LastSyncAt *time.Time `json:"lastSyncAt,omitempty"`
}

// Link guarda a decisão de conectividade.
type Link struct {
	pinger Pinger
	opts   Options
	logger zerolog.Logger

	// writes é compartilhado pelas escritas do Store e exclusivo em Promote,
	// entre o envio da fila e a troca para remoto.
	writes sync.RWMutex

	mu        sync.Mutex
	mode      Mode
	forced    bool
	checkedAt time.Time
	lastErr   string
	pending   int
	lastSync  time.Time
	checking  chan struct{}
	subs      map[int]chan Status
	nextSub   int
}

// New cria o link. pinger nil significa remoto não configurado.
func New(pinger Pinger, opts Options) *Link {
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 3 * time.Second
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = 100 * time.Millisecond
	}
	if opts.RetryMax < opts.RetryInitial {
		opts.RetryMax = opts.RetryInitial
	}

	l := &Link{
		pinger: pinger,
		opts:   opts,
		logger: log.With().Str("component", "link").Logger(),
		mode:   ModeUnknown,
		subs:   make(map[int]chan Status),
	}
	if pinger == nil {
		l.mode = ModeLocal
		l.lastErr = ErrNotConfigured.Error()
	}
	return l
}

// Configured informa se há banco remoto.
func (l *Link) Configured() bool {
	return l.pinger != nil
}

// Mode devolve a decisão em cache, executando o health check apenas quando desconhecida.
func (l *Link) Mode(ctx context.Context) Mode {
	for {
		l.mu.Lock()
		if l.mode != ModeUnknown {
			mode := l.mode
			l.mu.Unlock()
			return mode
		}
		if wait := l.checking; wait != nil {
			l.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return ModeUnknown
			}
		}
		done := make(chan struct{})
		l.checking = done
		l.mu.Unlock()

		// a decisão vale para a sessão inteira; cancelamento da requisição não é queda do remoto
		err := l.ping(context.WithoutCancel(ctx))

		l.mu.Lock()
		l.checking = nil
		l.checkedAt = time.Now().UTC()
		if err != nil {
			l.mode = ModeLocal
			l.lastErr = err.Error()
			l.logger.Warn().Err(err).Msg("remoto indisponível, sessão em modo local")
		} else if l.pending > 0 {
			// escritas locais ainda não enviadas: só Promote leva ao remoto
			l.mode = ModeLocal
			l.lastErr = errPendingSync.Error()
			l.logger.Info().Int("pending", l.pending).Msg("remoto disponível com fila pendente, sessão em modo local")
		} else {
			l.mode = ModeRemote
			l.lastErr = ""
			l.logger.Info().Msg("sessão em modo remoto")
		}
		close(done)
		l.broadcastLocked()
		l.mu.Unlock()
	}
}

func (l *Link) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.opts.HealthTimeout)
	defer cancel()
	return l.pinger.Ping(ctx)
}

// Ping executa um health check sem alterar a decisão.
func (l *Link) Ping(ctx context.Context) error {
	if l.pinger == nil {
		return ErrNotConfigured
	}
	return l.ping(ctx)
}

// Do executa uma operação remota com retentativas para falhas transitórias.
// Quando as tentativas se esgotam a decisão é invalidada e ErrRemoteUnavailable retorna.
func (l *Link) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if l.pinger == nil {
		return ErrNotConfigured
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.opts.RetryInitial
	b.MaxInterval = l.opts.RetryMax
	b.MaxElapsedTime = 0
	b.Reset()

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		l.logger.Warn().Err(err).Int("attempt", attempt).Str("class", Classify(err)).Msg("falha remota")
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(l.opts.RetryAttempts-1)), ctx))

	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if !Retryable(err) {
		return err
	}

	l.Invalidate(err)
	return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
}

// Invalidate descarta a decisão em cache após falha remota.
func (l *Link) Invalidate(cause error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cause != nil {
		l.lastErr = cause.Error()
	}
	if l.mode != ModeRemote {
		return
	}
	l.mode = ModeUnknown
	l.logger.Warn().Err(cause).Msg("decisão de conectividade invalidada")
	l.broadcastLocked()
}

// Promote volta ao modo remoto após esvaziar a fila local com sucesso.
func (l *Link) Promote(ctx context.Context, flush func(ctx context.Context) error) error {
	if l.pinger == nil {
		return ErrNotConfigured
	}

	l.mu.Lock()
	if l.forced {
		l.mu.Unlock()
		return ErrForcedLocal
	}
	l.mu.Unlock()

	if err := l.ping(ctx); err != nil {
		l.mu.Lock()
		l.checkedAt = time.Now().UTC()
		l.lastErr = err.Error()
		l.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	l.writes.Lock()
	defer l.writes.Unlock()

	if flush != nil {
		if err := flush(ctx); err != nil {
			l.mu.Lock()
			l.lastErr = err.Error()
			l.mu.Unlock()
			return fmt.Errorf("sincronizar fila: %w", err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending > 0 {
		l.lastErr = errPendingSync.Error()
		return fmt.Errorf("sincronizar fila: %w (%d)", errPendingSync, l.pending)
	}
	now := time.Now().UTC()
	l.checkedAt = now
	l.lastSync = now
	l.lastErr = ""
	if l.mode != ModeRemote {
		l.logger.Info().Str("from", string(l.mode)).Msg("modo alterado para remoto")
		l.mode = ModeRemote
	}
	l.broadcastLocked()
	return nil
}

// HoldWrites impede que Promote troque a fonte enquanto uma escrita decide o modo
// e grava. Devolve a função que libera.
func (l *Link) HoldWrites() func() {
	l.writes.RLock()
	return l.writes.RUnlock
}

// ForceLocal fixa o modo local até Resume.
func (l *Link) ForceLocal(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.forced = true
	l.mode = ModeLocal
	l.lastErr = reason
	l.logger.Info().Str("reason", reason).Msg("modo local forçado")
	l.broadcastLocked()
}

// Resume libera o modo forçado; a próxima operação refaz o health check.
func (l *Link) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.forced {
		return
	}
	l.forced = false
	if l.pinger != nil {
		l.mode = ModeUnknown
	}
	l.broadcastLocked()
}

// SetPending atualiza a contagem de escritas locais aguardando sincronização.
func (l *Link) SetPending(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == n {
		return
	}
	l.pending = n
	l.broadcastLocked()
}

// Status devolve um retrato do estado atual.
func (l *Link) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statusLocked()
}

func (l *Link) statusLocked() Status {
	st := Status{
		Mode:       l.mode,
		Configured: l.pinger != nil,
		Forced:     l.forced,
		LastError:  l.lastErr,
		Pending:    l.pending,
	}
	if !l.checkedAt.IsZero() {
		t := l.checkedAt
		st.CheckedAt = &t
	}
	if !l.lastSync.IsZero() {
		t := l.lastSync
		st.LastSyncAt = &t
	}
	return st
}

// Subscribe recebe mudanças de estado. A função devolvida encerra a inscrição.
func (l *Link) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 8)
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
}

func (l *Link) broadcastLocked() {
	st := l.statusLocked()
	for _, ch := range l.subs {
		select {
		case ch <- st:
		default:
		}
	}
}
