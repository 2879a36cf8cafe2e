package world

import (
	"github.com/aquilax/go-perlin"

	"github.com/annel0/gemworld/internal/coords"
)

// noiseMargin на сколько тайлов за границы чанка просчитывается шум. Нужен,
// чтобы краевые тайлы получали корректные переходы к соседним чанкам.
const noiseMargin = 2

// chunkNoise хранит значения шума для чанка и полосы вокруг него. Значения
// индексируются смещениями от -noiseMargin до 15+noiseMargin по обеим осям.
type chunkNoise struct {
	data [int(coords.ChunkWidth) + 2*noiseMargin][int(coords.ChunkHeight) + 2*noiseMargin]float64
}

// newChunkNoise сэмплирует шум Перлина для чанка с указанными координатами.
// Точки сэмплирования масштабируются множителем samplePointMultiplier.
func newChunkNoise(noise *perlin.Perlin, chunkCoords coords.ChunkCoords, samplePointMultiplier float64) *chunkNoise {
	cn := &chunkNoise{}

	for offsetX := int32(-noiseMargin); offsetX < coords.ChunkWidth+noiseMargin; offsetX++ {
		for offsetY := int32(-noiseMargin); offsetY < coords.ChunkHeight+noiseMargin; offsetY++ {
			sampleX := float64(chunkCoords.X*coords.ChunkWidth+offsetX) * samplePointMultiplier
			sampleY := float64(chunkCoords.Y*coords.ChunkHeight+offsetY) * samplePointMultiplier

			value := noise.Noise2D(sampleX, sampleY)
			if value > 1.0 {
				value = 1.0
			} else if value < -1.0 {
				value = -1.0
			}

			cn.data[offsetX+noiseMargin][offsetY+noiseMargin] = value
		}
	}

	return cn
}

// sample возвращает значение шума по смещению внутри (или сразу вокруг) чанка.
func (cn *chunkNoise) sample(offsetX, offsetY int32) float64 {
	return cn.data[offsetX+noiseMargin][offsetY+noiseMargin]
}
