package world

import (
	"math/rand"

	"github.com/aquilax/go-perlin"

	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/game"
)

// Параметры шума Перлина для генератора по умолчанию.
const (
	noiseAlpha   = 2.0
	noiseBeta    = 2.0
	noiseOctaves = 3

	noiseSamplePointMultiplier = 0.06
)

// Пороговые значения шума для категорий тайлов.
const (
	waterNoiseThreshold = -0.15
	dirtNoiseThreshold  = 0.3
)

// Взвешенные распределения внутренних тайлов по категориям.
var (
	dirtTileChoices = []game.Tile{game.TileDirt, game.TileRock, game.TileRockEmerald, game.TileRockRuby, game.TileRockDiamond}
	dirtTileWeights = []int{600, 15, 10, 5, 1}

	grassTileChoices = []game.Tile{game.TileGrass, game.TileFlowerBlue, game.TileFlowersYellowOrange, game.TileFlowerPatch, game.TileStones, game.TileShrub}
	grassTileWeights = []int{1500, 80, 70, 10, 8, 5}
)

// DefaultGenerator стандартный генератор ландшафта. Алгоритм:
//   - просчитать шум Перлина для чанка и полосы вокруг него;
//   - по пороговым значениям шума распределить тайлы по категориям
//     (трава/земля/вода);
//   - сгладить одиночные выступы областей;
//   - расставить переходные тайлы по границам областей и заполнить внутренние
//     тайлы по взвешенным распределениям.
type DefaultGenerator struct {
	seed      int64
	noise     *perlin.Perlin
	dirtDist  *weightedIndex
	grassDist *weightedIndex
}

// NewDefaultGenerator создаёт стандартный генератор с указанным сидом.
func NewDefaultGenerator(seed int64) *DefaultGenerator {
	return &DefaultGenerator{
		seed:      seed,
		noise:     perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed),
		dirtDist:  newWeightedIndex(dirtTileWeights),
		grassDist: newWeightedIndex(grassTileWeights),
	}
}

func (g *DefaultGenerator) Name() string { return "default" }

// Generate создаёт чанк. Результат детерминирован: шум зависит только от сида
// и координат, а локальный генератор случайных чисел сидируется значением
// seed ^ chunkX ^ chunkY.
func (g *DefaultGenerator) Generate(chunkCoords coords.ChunkCoords) *Chunk {
	noise := newChunkNoise(g.noise, chunkCoords, noiseSamplePointMultiplier)

	plan := newChunkPlan()
	for offsetX := int32(-noiseMargin); offsetX < coords.ChunkWidth+noiseMargin; offsetX++ {
		for offsetY := int32(-noiseMargin); offsetY < coords.ChunkHeight+noiseMargin; offsetY++ {
			sample := noise.sample(offsetX, offsetY)

			if sample >= dirtNoiseThreshold {
				plan.setCategoryAt(offsetX, offsetY, categoryDirt)
			} else if sample <= waterNoiseThreshold {
				plan.setCategoryAt(offsetX, offsetY, categoryWater)
			}
		}
	}

	plan.removeJuttingTiles()

	rngSeed := g.seed ^ int64(chunkCoords.X) ^ int64(chunkCoords.Y)
	rng := rand.New(rand.NewSource(rngSeed))

	return plan.toChunk(func(category tileCategory) game.Tile {
		switch category {
		case categoryDirt:
			return dirtTileChoices[g.dirtDist.sample(rng)]
		case categoryWater:
			return game.TileWater
		default:
			return grassTileChoices[g.grassDist.sample(rng)]
		}
	})
}

// weightedIndex выбирает индекс пропорционально целочисленным весам.
type weightedIndex struct {
	cumulative []int
	total      int
}

func newWeightedIndex(weights []int) *weightedIndex {
	wi := &weightedIndex{cumulative: make([]int, len(weights))}
	for i, weight := range weights {
		wi.total += weight
		wi.cumulative[i] = wi.total
	}
	return wi
}

func (wi *weightedIndex) sample(rng *rand.Rand) int {
	value := rng.Intn(wi.total)
	for i, bound := range wi.cumulative {
		if value < bound {
			return i
		}
	}
	return len(wi.cumulative) - 1
}
