// Package localstore guarda coleções JSON em armazenamento chave-valor local,
// usado quando a sessão opera sem o banco remoto.
package localstore

import (
	"context"
	"errors"
	"sync"
)

// ErrConflict indica que a escrita concorrente não pôde ser aplicada.
var ErrConflict = errors.New("localstore: conflito de escrita")

// KV é o contrato mínimo de armazenamento local.
type KV interface {
	// Get devolve nil quando a chave não existe.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Update aplica fn de forma atômica sobre o valor atual da chave.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
}

// MemoryKV mantém os valores em memória (modo demonstração e testes).
type MemoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryKV cria um KV vazio.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	val, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), val...), nil
}

func (m *MemoryKV) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current []byte
	if val, ok := m.data[key]; ok {
		current = append([]byte(nil), val...)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	m.data[key] = next
	return nil
}
