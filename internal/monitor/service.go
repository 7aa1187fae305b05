// Package monitor vigia a conectividade com o banco remoto: enquanto a sessão
// estiver em modo local, tenta esvaziar a fila e voltar ao remoto.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/monitorasaude/api/internal/config"
	"github.com/monitorasaude/api/internal/link"
	"github.com/monitorasaude/api/internal/store"
)

// Flusher envia a fila local ao remoto.
type Flusher interface {
	Flush(ctx context.Context) (store.FlushResult, error)
}

// Service executa o ciclo periódico de reconexão.
type Service struct {
	link     *link.Link
	flusher  Flusher
	cfg      config.MonitoringConfig
	notifier Notifier
	logger   zerolog.Logger

	once   sync.Once
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	lastMode link.Mode
}

func NewService(ln *link.Link, flusher Flusher, cfg config.MonitoringConfig, logger zerolog.Logger, notifier Notifier) *Service {
	return &Service{
		link:     ln,
		flusher:  flusher,
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		lastMode: link.ModeUnknown,
	}
}

// Start inicia o loop e o observador de transições. Pode ser chamado várias vezes.
func (s *Service) Start(parent context.Context) {
	if !s.cfg.Enabled || !s.link.Configured() {
		return
	}
	s.once.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		s.cancel = cancel
		updates, unsubscribe := s.link.Subscribe()

		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			s.runLoop(ctx)
		}()
		go func() {
			defer s.wg.Done()
			defer unsubscribe()
			s.watch(ctx, updates)
		}()
	})
}

// Stop encerra o loop e aguarda as goroutines.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Service) runLoop(ctx context.Context) {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("monitor: loop iniciado")

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("monitor: primeira execução falhou")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("monitor: loop encerrado")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("monitor: execução periódica falhou")
			}
		}
	}
}

// RunOnce tenta voltar ao remoto quando a sessão está local ou indecisa.
// Remoto ainda fora do ar não é erro: a sessão continua local.
func (s *Service) RunOnce(ctx context.Context) error {
	st := s.link.Status()
	if !st.Configured || st.Forced {
		return nil
	}
	if s.link.Mode(ctx) == link.ModeRemote && st.Pending == 0 {
		return nil
	}

	_, err := s.Sync(ctx)
	if errors.Is(err, link.ErrRemoteUnavailable) {
		s.logger.Debug().Err(err).Msg("monitor: remoto ainda indisponível")
		return nil
	}
	return err
}

// Sync esvazia a fila local no remoto e, se tudo foi aplicado, promove a
// sessão ao modo remoto. Usado pelo loop e pela sincronização manual.
func (s *Service) Sync(ctx context.Context) (store.FlushResult, error) {
	var res store.FlushResult
	err := s.link.Promote(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.flusher.Flush(ctx)
		if err != nil {
			return err
		}
		if res.Pending > 0 {
			return fmt.Errorf("%d escritas ainda pendentes", res.Pending)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	s.logger.Info().Int("applied", res.Applied).Int("rejected", res.Rejected).Msg("monitor: fila sincronizada")
	if res.Rejected > 0 {
		s.notify(ctx, AlertMessage{
			Title:    "Sincronização com rejeições",
			Text:     fmt.Sprintf("%d escritas locais foram rejeitadas pelo banco remoto e movidas para a fila de falhas.", res.Rejected),
			Severity: SeverityWarning,
		})
	}
	return res, nil
}

// watch notifica mudanças entre os modos local e remoto.
func (s *Service) watch(ctx context.Context, updates <-chan link.Status) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			if msg, changed := s.transition(st); changed {
				s.notify(ctx, msg)
			}
		}
	}
}

func (s *Service) transition(st link.Status) (AlertMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.Mode == link.ModeUnknown || st.Mode == s.lastMode {
		return AlertMessage{}, false
	}
	previous := s.lastMode
	s.lastMode = st.Mode

	switch {
	case st.Mode == link.ModeLocal:
		return AlertMessage{
			Title:    "Banco remoto indisponível",
			Text:     "Operando em modo local.",
			Severity: SeverityCritical,
			Fields:   statusFields(st),
		}, true
	case previous == link.ModeLocal:
		return AlertMessage{
			Title:    "Banco remoto restabelecido",
			Text:     "Fila local sincronizada, operando em modo remoto.",
			Severity: SeverityInfo,
			Fields:   statusFields(st),
		}, true
	}
	return AlertMessage{}, false
}

func statusFields(st link.Status) map[string]string {
	f := map[string]string{
		"modo":      string(st.Mode),
		"pendentes": strconv.Itoa(st.Pending),
	}
	if st.LastError != "" {
		f["motivo"] = st.LastError
	}
	return f
}

func (s *Service) notify(ctx context.Context, msg AlertMessage) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Error().Err(err).Str("title", msg.Title).Msg("monitor: falha ao enviar alerta")
	}
}
