package world

import (
	"fmt"
	"time"

	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/game"
)

// Chunk представляет участок мира размером 16x16 тайлов. Чанк — единица
// загрузки, сохранения и выгрузки карты.
type Chunk struct {
	// Tiles матрица тайлов в порядке строк (y * ширина + x)
	Tiles [coords.ChunkTileCount]game.Tile

	// lastAccessInstant момент последнего обращения к чанку (подсказка для LRU)
	lastAccessInstant time.Time
}

// NewChunk создаёт чанк, целиком заполненный указанным тайлом.
func NewChunk(fill game.Tile) *Chunk {
	chunk := &Chunk{lastAccessInstant: time.Now()}
	for i := range chunk.Tiles {
		chunk.Tiles[i] = fill
	}
	return chunk
}

// TileAtOffset возвращает тайл по смещению внутри чанка.
func (c *Chunk) TileAtOffset(offset coords.OffsetCoords) game.Tile {
	return c.Tiles[offset.TileIndex()]
}

// SetTileAtOffset устанавливает тайл по смещению внутри чанка.
func (c *Chunk) SetTileAtOffset(offset coords.OffsetCoords, tile game.Tile) {
	c.Tiles[offset.TileIndex()] = tile
}

// Snapshot возвращает копию чанка. Копия безопасна для чтения вне мьютекса
// мира.
func (c *Chunk) Snapshot() *Chunk {
	snapshot := *c
	return &snapshot
}

// Touch обновляет момент последнего обращения.
func (c *Chunk) Touch() {
	c.lastAccessInstant = time.Now()
}

// LastAccess возвращает момент последнего обращения к чанку.
func (c *Chunk) LastAccess() time.Time {
	return c.lastAccessInstant
}

// Serialize кодирует чанк в бинарный блоб фиксированного размера: по одному
// байту-дискриминанту на тайл.
func (c *Chunk) Serialize() []byte {
	data := make([]byte, coords.ChunkTileCount)
	for i, tile := range c.Tiles {
		data[i] = byte(tile)
	}
	return data
}

// DeserializeChunk восстанавливает чанк из бинарного блоба.
func DeserializeChunk(data []byte) (*Chunk, error) {
	if len(data) != coords.ChunkTileCount {
		return nil, fmt.Errorf("ожидалось %d байт данных чанка, получено %d", coords.ChunkTileCount, len(data))
	}

	chunk := &Chunk{lastAccessInstant: time.Now()}
	for i, b := range data {
		tile := game.Tile(b)
		if !tile.IsValid() {
			return nil, fmt.Errorf("неизвестный дискриминант тайла %d на позиции %d", b, i)
		}
		chunk.Tiles[i] = tile
	}

	return chunk, nil
}
