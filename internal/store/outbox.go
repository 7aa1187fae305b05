package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/monitorasaude/api/internal/localstore"
	"github.com/monitorasaude/api/internal/util"
)

// Op é a operação registrada na fila.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Entry é uma escrita local aguardando envio ao remoto.
type Entry struct {
	ID       string          `json:"id"`
	Entity   string          `json:"entity"`
	Op       Op              `json:"op"`
	RecordID string          `json:"recordId"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	At       time.Time       `json:"at"`
	Error    string          `json:"error,omitempty"`
}

// Outbox é a fila ordenada de escritas feitas em modo local.
type Outbox struct {
	pending  *localstore.Collection[Entry]
	failed   *localstore.Collection[Entry]
	onChange func(int)
}

// NewOutbox cria a fila. onChange recebe o tamanho após cada alteração.
func NewOutbox(kv localstore.KV, onChange func(int)) *Outbox {
	return &Outbox{
		pending:  localstore.NewCollection[Entry](kv, localstore.Key("outbox")),
		failed:   localstore.NewCollection[Entry](kv, localstore.Key("outbox:failed")),
		onChange: onChange,
	}
}

// Append registra uma escrita.
func (o *Outbox) Append(ctx context.Context, entity string, op Op, recordID string, payload any) error {
	e := Entry{
		ID:       util.NewID(),
		Entity:   entity,
		Op:       op,
		RecordID: recordID,
		At:       time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		e.Payload = raw
	}

	size := 0
	err := o.pending.Mutate(ctx, func(items []Entry) ([]Entry, error) {
		items = append(items, e)
		size = len(items)
		return items, nil
	})
	if err != nil {
		return err
	}
	o.notify(size)
	return nil
}

// Entries devolve as entradas pendentes em ordem.
func (o *Outbox) Entries(ctx context.Context) ([]Entry, error) {
	return o.pending.Load(ctx)
}

// Failed devolve as entradas rejeitadas pelo remoto.
func (o *Outbox) Failed(ctx context.Context) ([]Entry, error) {
	return o.failed.Load(ctx)
}

// Pending conta as entradas pendentes e publica o valor.
func (o *Outbox) Pending(ctx context.Context) (int, error) {
	items, err := o.pending.Load(ctx)
	if err != nil {
		return 0, err
	}
	o.notify(len(items))
	return len(items), nil
}

func (o *Outbox) remove(ctx context.Context, id string) error {
	size := 0
	err := o.pending.Mutate(ctx, func(items []Entry) ([]Entry, error) {
		out := items[:0]
		for _, it := range items {
			if it.ID != id {
				out = append(out, it)
			}
		}
		size = len(out)
		return out, nil
	})
	if err != nil {
		return err
	}
	o.notify(size)
	return nil
}

func (o *Outbox) reject(ctx context.Context, e Entry, cause error) error {
	e.Error = cause.Error()
	if err := o.failed.Mutate(ctx, func(items []Entry) ([]Entry, error) {
		return append(items, e), nil
	}); err != nil {
		return err
	}
	return o.remove(ctx, e.ID)
}

func (o *Outbox) notify(size int) {
	if o.onChange != nil {
		o.onChange(size)
	}
}
