package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/monitorasaude/api/internal/link"
)

// Syncer reaplica entradas da fila de uma entidade.
type Syncer interface {
	Entity() string
	Replay(ctx context.Context, e Entry) error
}

// Registry conhece todas as entidades e esvazia a fila local no remoto.
type Registry struct {
	outbox  *Outbox
	logger  zerolog.Logger
	flushMu sync.Mutex

	mu       sync.RWMutex
	entities map[string]Syncer
}

// NewRegistry cria o registro sobre a fila informada.
func NewRegistry(outbox *Outbox) *Registry {
	return &Registry{
		outbox:   outbox,
		logger:   log.With().Str("component", "sync").Logger(),
		entities: make(map[string]Syncer),
	}
}

// Outbox devolve a fila associada.
func (r *Registry) Outbox() *Outbox {
	return r.outbox
}

// Register associa a entidade à sincronização.
func (r *Registry) Register(s Syncer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[s.Entity()] = s
}

// FlushResult resume uma sincronização.
type FlushResult struct {
	Applied  int `json:"applied"`
	Rejected int `json:"rejected"`
	Pending  int `json:"pending"`
}

// Flush reaplica as entradas em ordem. Falha transitória interrompe;
// rejeição definitiva move a entrada para a fila de falhas e segue.
func (r *Registry) Flush(ctx context.Context) (FlushResult, error) {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	var res FlushResult
	entries, err := r.outbox.Entries(ctx)
	if err != nil {
		return res, err
	}

	for i, e := range entries {
		r.mu.RLock()
		target, ok := r.entities[e.Entity]
		r.mu.RUnlock()

		var applyErr error
		if !ok {
			applyErr = errUnknownEntity(e.Entity)
		} else {
			applyErr = target.Replay(ctx, e)
		}

		switch {
		case applyErr == nil:
			if err := r.outbox.remove(ctx, e.ID); err != nil {
				return res, err
			}
			res.Applied++
		case link.Retryable(applyErr) || ctx.Err() != nil:
			res.Pending = len(entries) - i
			r.logger.Warn().Err(applyErr).Int("applied", res.Applied).Msg("sincronização interrompida")
			return res, applyErr
		default:
			r.logger.Error().Err(applyErr).Str("entity", e.Entity).Str("record", e.RecordID).Msg("escrita local rejeitada pelo remoto")
			if err := r.outbox.reject(ctx, e, applyErr); err != nil {
				return res, err
			}
			res.Rejected++
		}
	}

	if res.Applied > 0 || res.Rejected > 0 {
		r.logger.Info().Int("applied", res.Applied).Int("rejected", res.Rejected).Msg("fila local sincronizada")
	}
	return res, nil
}

type errUnknownEntity string

func (e errUnknownEntity) Error() string {
	return "entidade desconhecida na fila: " + string(e)
}
