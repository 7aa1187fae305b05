package localstore

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Collection guarda uma lista de T serializada em JSON sob uma chave fixa.
type Collection[T any] struct {
	kv  KV
	key string
}

// NewCollection cria a coleção na chave informada.
func NewCollection[T any](kv KV, key string) *Collection[T] {
	return &Collection[T]{kv: kv, key: key}
}

// Key devolve a chave de armazenamento.
func (c *Collection[T]) Key() string {
	return c.key
}

// Load lê a coleção. Conteúdo corrompido resulta em coleção vazia.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	raw, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return nil, err
	}
	return c.decode(raw), nil
}

// Save substitui a coleção inteira.
func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	payload, err := encode(items)
	if err != nil {
		return err
	}
	return c.kv.Put(ctx, c.key, payload)
}

// Mutate aplica fn sobre a coleção atual e grava o resultado atomicamente.
func (c *Collection[T]) Mutate(ctx context.Context, fn func(items []T) ([]T, error)) error {
	return c.kv.Update(ctx, c.key, func(current []byte) ([]byte, error) {
		next, err := fn(c.decode(current))
		if err != nil {
			return nil, err
		}
		return encode(next)
	})
}

func (c *Collection[T]) decode(raw []byte) []T {
	if len(raw) == 0 {
		return []T{}
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Warn().Err(err).Str("key", c.key).Msg("localstore: conteúdo inválido, usando coleção vazia")
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}

func encode[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

// KeyPrefix é o prefixo fixo de todas as chaves locais.
const KeyPrefix = "monitora:"

// Key monta a chave local de uma coleção.
func Key(name string) string {
	return KeyPrefix + name
}
