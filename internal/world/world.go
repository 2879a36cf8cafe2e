package world

import (
	"context"
	"errors"
	"sync"

	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/game"
	"github.com/annel0/gemworld/internal/id"
)

// ErrChunkMissing возвращается хранилищем, когда чанк отсутствует на диске и
// должен быть сгенерирован.
var ErrChunkMissing = errors.New("чанк отсутствует в хранилище")

// ChunkStore описывает персистентное хранилище чанков. Реализуется пакетом
// storage; операции могут блокироваться на вводе-выводе и поэтому никогда не
// вызываются под мьютексом мира.
type ChunkStore interface {
	LoadChunk(ctx context.Context, coords coords.ChunkCoords) (*Chunk, error)
	SaveChunk(ctx context.Context, coords coords.ChunkCoords, chunk *Chunk) error
}

// Bomb представляет установленную, но ещё не подорванную бомбу.
type Bomb struct {
	Pos      coords.TileCoords
	PlacedBy id.Id
}

// EntityMovement описывает результат успешного перемещения сущности.
type EntityMovement struct {
	OldPosition coords.TileCoords
	NewPosition coords.TileCoords

	// SmashedTile прежнее значение тайла, разбитого этим перемещением
	// (nil, если ничего не разбито).
	SmashedTile *game.Tile
}

// EntityWithID пара (идентификатор, сущность), возвращаемая запросами по чанку.
type EntityWithID struct {
	ID     id.Id
	Entity *game.Entity
}

// residentChunk резидентный чанк вместе со счётчиком ссылок. Счётчик равен
// количеству обработчиков, чьи клиенты держат этот чанк загруженным.
type residentChunk struct {
	chunk    *Chunk
	refCount int
}

// Map владеет общим состоянием игрового мира: резидентными чанками,
// сущностями и бомбами. Все операции атомарны под одним мьютексом; критические
// секции короткие и никогда не приостанавливаются.
type Map struct {
	mu        sync.Mutex
	chunks    map[coords.ChunkCoords]*residentChunk
	entities  map[id.Id]*game.Entity
	bombs     []Bomb
	generator Generator
	store     ChunkStore
}

// NewMap создаёт пустой игровой мир с указанными генератором и хранилищем.
func NewMap(generator Generator, store ChunkStore) *Map {
	return &Map{
		chunks:    make(map[coords.ChunkCoords]*residentChunk),
		entities:  make(map[id.Id]*game.Entity),
		generator: generator,
		store:     store,
	}
}

// AddEntity помещает сущность в мир. Каждый идентификатор соответствует ровно
// одной сущности.
func (m *Map) AddEntity(entityID id.Id, entity *game.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entities[entityID] = entity
}

// RemoveEntity удаляет сущность из мира и возвращает её (nil, если сущности
// не было).
func (m *Map) RemoveEntity(entityID id.Id) *game.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	entity, exists := m.entities[entityID]
	if !exists {
		return nil
	}
	delete(m.entities, entityID)
	return entity
}

// EntityByID возвращает копию сущности по идентификатору или nil.
func (m *Map) EntityByID(entityID id.Id) *game.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	entity, exists := m.entities[entityID]
	if !exists {
		return nil
	}
	return entity.Clone()
}

// MutateEntity выполняет mutate над сущностью под мьютексом мира. Возвращает
// false, если сущность не найдена. Go-эквивалент выдачи мутабельной ссылки:
// замыкание не должно задерживать выполнение.
func (m *Map) MutateEntity(entityID id.Id, mutate func(*game.Entity)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entity, exists := m.entities[entityID]
	if !exists {
		return false
	}
	mutate(entity)
	return true
}

// EntitiesInChunk возвращает копии всех сущностей, находящихся в указанном
// чанке.
func (m *Map) EntitiesInChunk(chunkCoords coords.ChunkCoords) []EntityWithID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []EntityWithID
	for entityID, entity := range m.entities {
		if entity.Pos.AsChunkCoords() == chunkCoords {
			result = append(result, EntityWithID{ID: entityID, Entity: entity.Clone()})
		}
	}
	return result
}

// entityAt сообщает, занята ли позиция другой сущностью. Вызывается только под
// мьютексом.
func (m *Map) entityAt(pos coords.TileCoords) bool {
	for _, entity := range m.entities {
		if entity.Pos == pos {
			return true
		}
	}
	return false
}

// tileAtLocked возвращает тайл по глобальным координатам, если содержащий его
// чанк резидентен. Вызывается только под мьютексом.
func (m *Map) tileAtLocked(pos coords.TileCoords) (game.Tile, bool) {
	resident, exists := m.chunks[pos.AsChunkCoords()]
	if !exists {
		return 0, false
	}
	resident.chunk.Touch()
	return resident.chunk.TileAtOffset(pos.AsChunkOffsetCoords()), true
}

// MoveEntityTowards пытается переместить сущность на один тайл в указанном
// направлении. Направление взгляда обновляется даже при отказе (сущность
// поворачивается). Возвращает nil, если перемещение невозможно: тайл
// неизвестен, блокирует движение или позиция занята другой сущностью.
// Разбиваемый тайл атомарно заменяется и его прежнее значение возвращается в
// SmashedTile.
func (m *Map) MoveEntityTowards(entityID id.Id, direction coords.Direction) *EntityMovement {
	m.mu.Lock()
	defer m.mu.Unlock()

	entity, exists := m.entities[entityID]
	if !exists {
		return nil
	}

	entity.Direction = direction
	newPos := direction.Apply(entity.Pos)

	tile, loaded := m.tileAtLocked(newPos)
	if !loaded || tile.IsBlocking() || m.entityAt(newPos) {
		return nil
	}

	movement := &EntityMovement{OldPosition: entity.Pos, NewPosition: newPos}

	if tile.IsSmashable() {
		smashed := tile
		movement.SmashedTile = &smashed

		resident := m.chunks[newPos.AsChunkCoords()]
		resident.chunk.SetTileAtOffset(newPos.AsChunkOffsetCoords(), tile.SmashedInto())
	}

	entity.Pos = newPos
	return movement
}

// SetBombAt регистрирует бомбу, установленную сущностью на указанной позиции.
func (m *Map) SetBombAt(pos coords.TileCoords, placedBy id.Id) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bombs = append(m.bombs, Bomb{Pos: pos, PlacedBy: placedBy})
}

// TakeBombsPlacedByInAndAroundChunk удаляет и возвращает позиции всех бомб
// указанного владельца в блоке чанков 3x3 с центром в centerChunk.
func (m *Map) TakeBombsPlacedByInAndAroundChunk(placedBy id.Id, centerChunk coords.ChunkCoords) []coords.TileCoords {
	m.mu.Lock()
	defer m.mu.Unlock()

	var taken []coords.TileCoords
	remaining := m.bombs[:0]

	for _, bomb := range m.bombs {
		bombChunk := bomb.Pos.AsChunkCoords()
		inRange := bombChunk.X >= centerChunk.X-1 && bombChunk.X <= centerChunk.X+1 &&
			bombChunk.Y >= centerChunk.Y-1 && bombChunk.Y <= centerChunk.Y+1

		if bomb.PlacedBy == placedBy && inRange {
			taken = append(taken, bomb.Pos)
		} else {
			remaining = append(remaining, bomb)
		}
	}

	m.bombs = remaining
	return taken
}

// AddChunk делает чанк резидентным со счётчиком ссылок 0. Если чанк уже
// резидентен, сохраняется существующий экземпляр.
func (m *Map) AddChunk(chunkCoords coords.ChunkCoords, chunk *Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.chunks[chunkCoords]; !exists {
		m.chunks[chunkCoords] = &residentChunk{chunk: chunk}
	}
}

// LoadedChunkAt возвращает резидентный чанк или nil.
func (m *Map) LoadedChunkAt(chunkCoords coords.ChunkCoords) *Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()

	resident, exists := m.chunks[chunkCoords]
	if !exists {
		return nil
	}
	return resident.chunk
}

// TileAt возвращает тайл по глобальным координатам, если его чанк резидентен.
func (m *Map) TileAt(pos coords.TileCoords) (game.Tile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.tileAtLocked(pos)
}

// SetTileAt изменяет тайл по глобальным координатам. Возвращает false, если
// чанк не резидентен.
func (m *Map) SetTileAt(pos coords.TileCoords, tile game.Tile) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	resident, exists := m.chunks[pos.AsChunkCoords()]
	if !exists {
		return false
	}
	resident.chunk.SetTileAtOffset(pos.AsChunkOffsetCoords(), tile)
	return true
}

// ChunkInUse увеличивает счётчик ссылок резидентного чанка. Вызывается
// обработчиком после добавления координат в набор загруженных клиентом чанков.
func (m *Map) ChunkInUse(chunkCoords coords.ChunkCoords) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if resident, exists := m.chunks[chunkCoords]; exists {
		resident.refCount++
		resident.chunk.Touch()
	}
}

// ChunkNotInUse уменьшает счётчик ссылок чанка. Когда счётчик достигает нуля,
// чанк исключается из резидентных и возвращается вызывающему для сохранения.
func (m *Map) ChunkNotInUse(chunkCoords coords.ChunkCoords) *Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()

	resident, exists := m.chunks[chunkCoords]
	if !exists {
		return nil
	}

	resident.refCount--
	if resident.refCount > 0 {
		return nil
	}

	delete(m.chunks, chunkCoords)
	return resident.chunk
}

// ChunkRefCount возвращает счётчик ссылок чанка (для тестов и метрик).
func (m *Map) ChunkRefCount(chunkCoords coords.ChunkCoords) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	resident, exists := m.chunks[chunkCoords]
	if !exists {
		return 0
	}
	return resident.refCount
}

// ResidentChunkCount возвращает количество резидентных чанков.
func (m *Map) ResidentChunkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.chunks)
}

// EntityCount возвращает количество сущностей в мире.
func (m *Map) EntityCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entities)
}

// GetOrLoadOrGenerateChunk возвращает чанк по координатам, разрешая его в
// порядке приоритета: резидентный в мире, загруженный из хранилища, свежесгенерированный.
// Ввод-вывод выполняется вне мьютекса мира. Возвращается копия: её можно
// сериализовать и отправлять, не удерживая мьютекс.
func (m *Map) GetOrLoadOrGenerateChunk(ctx context.Context, chunkCoords coords.ChunkCoords) (*Chunk, error) {
	m.mu.Lock()
	if resident, exists := m.chunks[chunkCoords]; exists {
		resident.chunk.Touch()
		snapshot := resident.chunk.Snapshot()
		m.mu.Unlock()
		return snapshot, nil
	}
	m.mu.Unlock()

	chunk, err := m.store.LoadChunk(ctx, chunkCoords)
	if errors.Is(err, ErrChunkMissing) {
		chunk = m.generator.Generate(chunkCoords)
	} else if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Повторная проверка: другой обработчик мог успеть загрузить чанк
	if resident, exists := m.chunks[chunkCoords]; exists {
		return resident.chunk.Snapshot(), nil
	}

	m.chunks[chunkCoords] = &residentChunk{chunk: chunk}
	return chunk.Snapshot(), nil
}
