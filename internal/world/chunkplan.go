package world

import (
	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/game"
)

// tileCategory промежуточная категория тайла при планировании чанка.
type tileCategory uint8

const (
	categoryGrass tileCategory = iota
	categoryDirt
	categoryWater
)

// transitionTiles набор из 12 переходных тайлов, размещаемых по границе
// области одной категории.
type transitionTiles struct {
	top, bottom, left, right                                               game.Tile
	topLeft, topRight, bottomLeft, bottomRight                             game.Tile
	cornerTopLeft, cornerTopRight, cornerBottomLeft, cornerBottomRight     game.Tile
}

var dirtGrassTransitions = transitionTiles{
	top:               game.TileDirtGrassTop,
	bottom:            game.TileDirtGrassBottom,
	left:              game.TileDirtGrassLeft,
	right:             game.TileDirtGrassRight,
	topLeft:           game.TileDirtGrassTopLeft,
	topRight:          game.TileDirtGrassTopRight,
	bottomLeft:        game.TileDirtGrassBottomLeft,
	bottomRight:       game.TileDirtGrassBottomRight,
	cornerTopLeft:     game.TileDirtGrassCornerTopLeft,
	cornerTopRight:    game.TileDirtGrassCornerTopRight,
	cornerBottomLeft:  game.TileDirtGrassCornerBottomLeft,
	cornerBottomRight: game.TileDirtGrassCornerBottomRight,
}

var waterGrassTransitions = transitionTiles{
	top:               game.TileWaterGrassTop,
	bottom:            game.TileWaterGrassBottom,
	left:              game.TileWaterGrassLeft,
	right:             game.TileWaterGrassRight,
	topLeft:           game.TileWaterGrassTopLeft,
	topRight:          game.TileWaterGrassTopRight,
	bottomLeft:        game.TileWaterGrassBottomLeft,
	bottomRight:       game.TileWaterGrassBottomRight,
	cornerTopLeft:     game.TileWaterGrassCornerTopLeft,
	cornerTopRight:    game.TileWaterGrassCornerTopRight,
	cornerBottomLeft:  game.TileWaterGrassCornerBottomLeft,
	cornerBottomRight: game.TileWaterGrassCornerBottomRight,
}

// chunkPlan хранит категории тайлов для чанка и полосы вокруг него.
// Всё, что не задано явно, считается травой.
type chunkPlan struct {
	categories map[[2]int32]tileCategory
}

func newChunkPlan() *chunkPlan {
	return &chunkPlan{categories: make(map[[2]int32]tileCategory)}
}

func (p *chunkPlan) setCategoryAt(offsetX, offsetY int32, category tileCategory) {
	p.categories[[2]int32{offsetX, offsetY}] = category
}

func (p *chunkPlan) categoryAt(offsetX, offsetY int32) tileCategory {
	return p.categories[[2]int32{offsetX, offsetY}]
}

// removeJuttingTiles заменяет травой одиночные выступы земли и воды: позиции,
// у которых хотя бы три ортогональных соседа имеют другую категорию. Проход
// повторяется, пока план не стабилизируется, чтобы удаление одного выступа не
// оставляло нового.
func (p *chunkPlan) removeJuttingTiles() {
	for {
		var jutting [][2]int32

		for offsetX := int32(-1); offsetX <= coords.ChunkWidth; offsetX++ {
			for offsetY := int32(-1); offsetY <= coords.ChunkHeight; offsetY++ {
				category := p.categoryAt(offsetX, offsetY)
				if category == categoryGrass {
					continue
				}

				differing := 0
				for _, neighbour := range [4][2]int32{{0, 1}, {0, -1}, {-1, 0}, {1, 0}} {
					if p.categoryAt(offsetX+neighbour[0], offsetY+neighbour[1]) != category {
						differing++
					}
				}

				if differing >= 3 {
					jutting = append(jutting, [2]int32{offsetX, offsetY})
				}
			}
		}

		if len(jutting) == 0 {
			return
		}
		for _, pos := range jutting {
			delete(p.categories, pos)
		}
	}
}

// toChunk собирает чанк из плана: по границам областей расставляются
// переходные тайлы согласно 12-позиционной таблице, внутренние тайлы выбирает
// placeNonTransitionTile.
func (p *chunkPlan) toChunk(placeNonTransitionTile func(tileCategory) game.Tile) *Chunk {
	chunk := NewChunk(game.TileGrass)

	for offsetX := int32(0); offsetX < coords.ChunkWidth; offsetX++ {
		for offsetY := int32(0); offsetY < coords.ChunkHeight; offsetY++ {
			category := p.categoryAt(offsetX, offsetY)

			tile, isTransition := p.maybeTransitionTile(offsetX, offsetY)
			if !isTransition {
				tile = placeNonTransitionTile(category)
			}

			chunk.SetTileAtOffset(coords.OffsetCoords{X: uint8(offsetX), Y: uint8(offsetY)}, tile)
		}
	}

	return chunk
}

// maybeTransitionTile возвращает переходный тайл для позиции на границе
// области земли или воды. Сначала проверяются прямые и прямоугольные переходы
// по ортогональным соседям, затем угловые по диагональным.
func (p *chunkPlan) maybeTransitionTile(offsetX, offsetY int32) (game.Tile, bool) {
	category := p.categoryAt(offsetX, offsetY)

	var transitions *transitionTiles
	switch category {
	case categoryDirt:
		transitions = &dirtGrassTransitions
	case categoryWater:
		transitions = &waterGrassTransitions
	default:
		return 0, false
	}

	above := p.categoryAt(offsetX, offsetY+1) != category
	below := p.categoryAt(offsetX, offsetY-1) != category
	left := p.categoryAt(offsetX-1, offsetY) != category
	right := p.categoryAt(offsetX+1, offsetY) != category

	switch {
	// Прямые переходы
	case above && !left && !right:
		return transitions.top, true
	case below && !left && !right:
		return transitions.bottom, true
	case !above && !below && left:
		return transitions.left, true
	case !above && !below && right:
		return transitions.right, true
	// Прямоугольные переходы
	case above && left && !right:
		return transitions.topLeft, true
	case above && !left && right:
		return transitions.topRight, true
	case below && left && !right:
		return transitions.bottomLeft, true
	case below && !left && right:
		return transitions.bottomRight, true
	}

	topLeft := p.categoryAt(offsetX-1, offsetY+1) != category
	topRight := p.categoryAt(offsetX+1, offsetY+1) != category
	bottomLeft := p.categoryAt(offsetX-1, offsetY-1) != category
	bottomRight := p.categoryAt(offsetX+1, offsetY-1) != category

	switch {
	// Угловые переходы
	case topLeft && !topRight && !bottomLeft:
		return transitions.cornerTopLeft, true
	case !topLeft && topRight && !bottomRight:
		return transitions.cornerTopRight, true
	case !topLeft && bottomLeft && !bottomRight:
		return transitions.cornerBottomLeft, true
	case !topRight && !bottomLeft && bottomRight:
		return transitions.cornerBottomRight, true
	}

	return 0, false
}
