package coords

import "fmt"

// Размеры чанка в тайлах.
const (
	ChunkWidth  int32 = 16
	ChunkHeight int32 = 16

	// ChunkTileCount общее количество тайлов в чанке.
	ChunkTileCount = int(ChunkWidth) * int(ChunkHeight)
)

// TileCoords представляет глобальные координаты тайла на бесконечной карте.
type TileCoords struct {
	X, Y int32
}

// AsChunkCoords возвращает координаты чанка, содержащего данный тайл.
// Для отрицательных координат используется честное округление вниз.
func (t TileCoords) AsChunkCoords() ChunkCoords {
	return ChunkCoords{X: t.X >> 4, Y: t.Y >> 4}
}

// AsChunkOffsetCoords возвращает смещение тайла внутри его чанка, всегда в
// диапазоне [0, 16) по обеим осям.
func (t TileCoords) AsChunkOffsetCoords() OffsetCoords {
	return OffsetCoords{X: uint8(t.X & 0xF), Y: uint8(t.Y & 0xF)}
}

func (t TileCoords) String() string {
	return fmt.Sprintf("tile (%d, %d)", t.X, t.Y)
}

// ChunkCoords представляет координаты чанка на карте.
type ChunkCoords struct {
	X, Y int32
}

func (c ChunkCoords) String() string {
	return fmt.Sprintf("chunk (%d, %d)", c.X, c.Y)
}

// OffsetCoords представляет смещение тайла внутри чанка.
type OffsetCoords struct {
	X, Y uint8
}

func (o OffsetCoords) String() string {
	return fmt.Sprintf("offset (%d, %d)", o.X, o.Y)
}

// TileIndex возвращает индекс тайла в линейном массиве чанка.
func (o OffsetCoords) TileIndex() int {
	return int(o.Y)*int(ChunkWidth) + int(o.X)
}

// Direction описывает направление движения или взгляда сущности.
type Direction uint8

const (
	DirectionDown Direction = iota
	DirectionUp
	DirectionLeft
	DirectionRight
)

// Apply возвращает координаты соседнего тайла в данном направлении.
func (d Direction) Apply(pos TileCoords) TileCoords {
	switch d {
	case DirectionDown:
		pos.Y--
	case DirectionUp:
		pos.Y++
	case DirectionLeft:
		pos.X--
	case DirectionRight:
		pos.X++
	}
	return pos
}

func (d Direction) String() string {
	switch d {
	case DirectionDown:
		return "down"
	case DirectionUp:
		return "up"
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	default:
		return "unknown"
	}
}
