package world

import (
	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/game"
	"github.com/annel0/gemworld/internal/id"
)

// ModificationKind тип изменения игрового мира.
type ModificationKind uint8

const (
	ModTileChanged ModificationKind = iota
	ModEntityMoved
	ModEntityAdded
	ModEntityRemoved
	ModBombPlaced
	ModBombsDetonated
)

// Modification описывает изменение игрового мира, публикуемое на шине для
// остальных обработчиков соединений. Закрытое размеченное объединение:
// значимые поля определяются полем Kind.
type Modification struct {
	Kind ModificationKind

	// TileChanged, BombPlaced
	Pos  coords.TileCoords
	Tile game.Tile

	// Идентификатор затронутой сущности (или владельца бомбы)
	EntityID id.Id

	// EntityMoved
	OldPosition coords.TileCoords
	NewPosition coords.TileCoords
	Direction   coords.Direction

	// EntityRemoved: чанк, в котором сущность находилась перед удалением
	LastChunk coords.ChunkCoords
}

// TileChanged создаёт событие изменения тайла.
func TileChanged(pos coords.TileCoords, tile game.Tile) Modification {
	return Modification{Kind: ModTileChanged, Pos: pos, Tile: tile}
}

// EntityMoved создаёт событие перемещения сущности.
func EntityMoved(entityID id.Id, from, to coords.TileCoords, dir coords.Direction) Modification {
	return Modification{Kind: ModEntityMoved, EntityID: entityID, OldPosition: from, NewPosition: to, Direction: dir}
}

// EntityAdded создаёт событие появления сущности в мире.
func EntityAdded(entityID id.Id) Modification {
	return Modification{Kind: ModEntityAdded, EntityID: entityID}
}

// EntityRemoved создаёт событие удаления сущности из мира.
func EntityRemoved(entityID id.Id, lastChunk coords.ChunkCoords) Modification {
	return Modification{Kind: ModEntityRemoved, EntityID: entityID, LastChunk: lastChunk}
}

// BombPlaced создаёт событие установки бомбы.
func BombPlaced(pos coords.TileCoords, by id.Id) Modification {
	return Modification{Kind: ModBombPlaced, Pos: pos, EntityID: by}
}

// BombsDetonated создаёт событие подрыва всех бомб игрока вокруг его чанка.
func BombsDetonated(by id.Id) Modification {
	return Modification{Kind: ModBombsDetonated, EntityID: by}
}
