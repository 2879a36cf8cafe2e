// Package client реализует клиентскую сторону протокола: локальную копию
// карты и предсказание перемещений собственной сущности с последующей сверкой
// с сервером.
package client

import (
	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/game"
	"github.com/annel0/gemworld/internal/id"
	"github.com/annel0/gemworld/internal/logging"
	"github.com/annel0/gemworld/internal/protocol"
	"github.com/annel0/gemworld/internal/world"
)

// Map локальная копия участка игрового мира, зеркалируемого клиентом: чанки,
// предоставленные сервером, и чужие сущности в них.
type Map struct {
	loadedChunks map[coords.ChunkCoords]*world.Chunk
	entities     map[id.Id]*game.Entity
}

// NewMap создаёт пустую клиентскую карту.
func NewMap() *Map {
	return &Map{
		loadedChunks: make(map[coords.ChunkCoords]*world.Chunk),
		entities:     make(map[id.Id]*game.Entity),
	}
}

// TileAt возвращает тайл по координатам, если его чанк загружен.
func (m *Map) TileAt(pos coords.TileCoords) (game.Tile, bool) {
	chunk, loaded := m.loadedChunks[pos.AsChunkCoords()]
	if !loaded {
		return 0, false
	}
	return chunk.TileAtOffset(pos.AsChunkOffsetCoords()), true
}

// IsPositionFree сообщает, может ли сущность переместиться на позицию:
// тайл известен, не блокирует движение, и позиция не занята другой сущностью.
func (m *Map) IsPositionFree(pos coords.TileCoords) bool {
	tile, loaded := m.TileAt(pos)
	if !loaded || tile.IsBlocking() {
		return false
	}

	for _, entity := range m.entities {
		if entity.Pos == pos {
			return false
		}
	}
	return true
}

// Entity возвращает чужую сущность по идентификатору.
func (m *Map) Entity(entityID id.Id) *game.Entity {
	return m.entities[entityID]
}

// LoadedChunkCount возвращает количество загруженных чанков.
func (m *Map) LoadedChunkCount() int {
	return len(m.loadedChunks)
}

// Apply применяет сообщение сервера к локальной копии мира. Сообщения,
// относящиеся к собственной сущности клиента (YourEntityMoved,
// YouCollectedGems), обрабатывает PlayerEntity.
func (m *Map) Apply(msg protocol.FromServer) {
	switch s := msg.(type) {
	case protocol.ProvideChunk:
		m.loadedChunks[s.Coords] = s.Chunk

	case protocol.ShouldUnloadChunk:
		delete(m.loadedChunks, s.Coords)

	case protocol.ProvideEntity:
		m.entities[s.EntityID] = s.Entity

	case protocol.ShouldUnloadEntity:
		delete(m.entities, s.EntityID)

	case protocol.MoveEntity:
		entity, known := m.entities[s.EntityID]
		if !known {
			logging.Warn("Сервер сообщил о перемещении неизвестной сущности %v", s.EntityID)
			return
		}
		entity.Pos = s.NewPosition
		entity.Direction = s.Direction

	case protocol.ChangeTile:
		chunk, loaded := m.loadedChunks[s.Pos.AsChunkCoords()]
		if !loaded {
			logging.Warn("Сервер изменил тайл %v в незагруженном чанке", s.Pos)
			return
		}
		chunk.SetTileAtOffset(s.Pos.AsChunkOffsetCoords(), s.Tile)
	}
}
