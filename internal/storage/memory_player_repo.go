package storage

import (
	"context"
	"sync"

	"github.com/annel0/gemworld/internal/game"
	"github.com/annel0/gemworld/internal/id"
)

// MemoryPlayerRepo хранит сущности игроков в памяти. Используется в тестах и
// как запасной вариант, когда база данных недоступна.
type MemoryPlayerRepo struct {
	mu      sync.RWMutex
	records map[id.Id]playerRecord
}

// NewMemoryPlayerRepo создаёт пустое хранилище игроков в памяти.
func NewMemoryPlayerRepo() *MemoryPlayerRepo {
	return &MemoryPlayerRepo{records: make(map[id.Id]playerRecord)}
}

// LoadPlayer загружает сущность игрока по идентификатору клиента.
func (r *MemoryPlayerRepo) LoadPlayer(_ context.Context, clientID id.Id) (id.Id, *game.Entity, bool, error) {
	r.mu.RLock()
	record, exists := r.records[clientID]
	r.mu.RUnlock()

	if !exists {
		return id.Zero, nil, false, nil
	}

	entityID, entity, err := record.toEntity()
	if err != nil {
		return id.Zero, nil, false, err
	}
	return entityID, entity, true, nil
}

// SavePlayer сохраняет сущность игрока.
func (r *MemoryPlayerRepo) SavePlayer(_ context.Context, clientID, entityID id.Id, entity *game.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[clientID] = recordFromEntity(entityID, entity)
	return nil
}

// DeletePlayer удаляет запись игрока.
func (r *MemoryPlayerRepo) DeletePlayer(_ context.Context, clientID id.Id) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, clientID)
	return nil
}

// Close ничего не освобождает для хранилища в памяти.
func (r *MemoryPlayerRepo) Close() error { return nil }
