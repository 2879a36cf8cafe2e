package world

import (
	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/game"
)

// Generator порождает чанки для ещё не существующих участков карты. Генерация
// детерминирована: для одной пары (сид, координаты) всегда возвращается
// побайтово идентичный чанк.
type Generator interface {
	// Name возвращает имя генератора, под которым он записан в конфигурации
	// мира.
	Name() string

	// Generate создаёт чанк для указанных координат.
	Generate(chunkCoords coords.ChunkCoords) *Chunk
}

// GeneratorFactory создаёт генератор с указанным сидом.
type GeneratorFactory func(seed int64) Generator

var generatorRegistry = map[string]GeneratorFactory{
	"default": func(seed int64) Generator { return NewDefaultGenerator(seed) },
	"flat":    func(seed int64) Generator { return FlatGenerator{} },
}

// GeneratorByName возвращает генератор по имени из конфигурации мира.
// Второй результат false означает, что имя неизвестно (фатальная ошибка для
// данного мира).
func GeneratorByName(name string, seed int64) (Generator, bool) {
	factory, exists := generatorRegistry[name]
	if !exists {
		return nil, false
	}
	return factory(seed), true
}

// FlatGenerator порождает чанки, целиком заполненные травой. Используется в
// тестах и для миров без рельефа.
type FlatGenerator struct{}

func (FlatGenerator) Name() string { return "flat" }

func (FlatGenerator) Generate(coords.ChunkCoords) *Chunk {
	return NewChunk(game.TileGrass)
}
