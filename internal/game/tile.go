package game

// Tile представляет один тайл карты. Значения дискриминантов стабильны: они
// записываются в файлы чанков и передаются по сети, поэтому новые варианты
// добавляются только в конец списка.
type Tile uint8

const (
	TileGrass Tile = iota
	TileDirt
	TileWater
	TileRock
	TileRockEmerald
	TileRockRuby
	TileRockDiamond
	TileFlowerBlue
	TileFlowersYellowOrange
	TileFlowerPatch
	TileStones
	TileShrub

	// Переходные тайлы между землёй и травой
	TileDirtGrassTop
	TileDirtGrassBottom
	TileDirtGrassLeft
	TileDirtGrassRight
	TileDirtGrassTopLeft
	TileDirtGrassTopRight
	TileDirtGrassBottomLeft
	TileDirtGrassBottomRight
	TileDirtGrassCornerTopLeft
	TileDirtGrassCornerTopRight
	TileDirtGrassCornerBottomLeft
	TileDirtGrassCornerBottomRight

	// Переходные тайлы между водой и травой
	TileWaterGrassTop
	TileWaterGrassBottom
	TileWaterGrassLeft
	TileWaterGrassRight
	TileWaterGrassTopLeft
	TileWaterGrassTopRight
	TileWaterGrassBottomLeft
	TileWaterGrassBottomRight
	TileWaterGrassCornerTopLeft
	TileWaterGrassCornerTopRight
	TileWaterGrassCornerBottomLeft
	TileWaterGrassCornerBottomRight

	tileCount
)

// GemYield описывает диапазон количества самоцветов, выпадающих при разбивании
// тайла.
type GemYield struct {
	Gem             Gem
	MinimumQuantity uint32
	MaximumQuantity uint32
}

// tileProperties описывает игровые свойства тайла. Единственный
// авторитетный источник правил проходимости, разбиваемости и дропа.
type tileProperties struct {
	blocking  bool
	smashable bool
	grassy    bool
	smashInto Tile
	gemYield  *GemYield
}

var tileTable = map[Tile]tileProperties{
	TileGrass:               {grassy: true},
	TileDirt:                {},
	TileWater:               {blocking: true},
	TileRock:                {blocking: true},
	TileRockEmerald:         {smashable: true, smashInto: TileDirt, gemYield: &GemYield{Gem: GemEmerald, MinimumQuantity: 1, MaximumQuantity: 3}},
	TileRockRuby:            {smashable: true, smashInto: TileDirt, gemYield: &GemYield{Gem: GemRuby, MinimumQuantity: 1, MaximumQuantity: 2}},
	TileRockDiamond:         {smashable: true, smashInto: TileDirt, gemYield: &GemYield{Gem: GemDiamond, MinimumQuantity: 1, MaximumQuantity: 1}},
	TileFlowerBlue:          {grassy: true},
	TileFlowersYellowOrange: {grassy: true},
	TileFlowerPatch:         {grassy: true},
	TileStones:              {},
	TileShrub:               {grassy: true},

	TileWaterGrassTop:               {blocking: true},
	TileWaterGrassBottom:            {blocking: true},
	TileWaterGrassLeft:              {blocking: true},
	TileWaterGrassRight:             {blocking: true},
	TileWaterGrassTopLeft:           {blocking: true},
	TileWaterGrassTopRight:          {blocking: true},
	TileWaterGrassBottomLeft:        {blocking: true},
	TileWaterGrassBottomRight:       {blocking: true},
	TileWaterGrassCornerTopLeft:     {blocking: true},
	TileWaterGrassCornerTopRight:    {blocking: true},
	TileWaterGrassCornerBottomLeft:  {blocking: true},
	TileWaterGrassCornerBottomRight: {blocking: true},
}

func (t Tile) properties() tileProperties {
	// Отсутствующие в таблице переходные тайлы земли ведут себя как обычная
	// земля: не блокируют и не разбиваются.
	return tileTable[t]
}

// IsValid сообщает, является ли значение известным дискриминантом тайла.
func (t Tile) IsValid() bool {
	return t < tileCount
}

// IsBlocking сообщает, запрещает ли тайл перемещение на него.
func (t Tile) IsBlocking() bool {
	return t.properties().blocking
}

// IsSmashable сообщает, разбивается ли тайл при ходе на него.
func (t Tile) IsSmashable() bool {
	return t.properties().smashable
}

// IsGrassy сообщает, является ли тайл травяным (движение по нему быстрее).
func (t Tile) IsGrassy() bool {
	return t.properties().grassy
}

// SmashedInto возвращает тайл, остающийся на месте разбитого.
func (t Tile) SmashedInto() Tile {
	return t.properties().smashInto
}

// GetGemYield возвращает диапазон дропа самоцветов или nil, если тайл ничего
// не приносит.
func (t Tile) GetGemYield() *GemYield {
	return t.properties().gemYield
}
