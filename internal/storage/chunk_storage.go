package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/logging"
	"github.com/annel0/gemworld/internal/world"
)

// ChunkStorage хранит чанки в файловой системе: по одному файлу
// <worldDir>/<x>_<y>.chunk с бинарным блобом чанка.
type ChunkStorage struct {
	directory string
}

// NewChunkStorage создаёт файловое хранилище чанков в указанной директории.
func NewChunkStorage(directory string) (*ChunkStorage, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию мира %s: %w", directory, err)
	}
	return &ChunkStorage{directory: directory}, nil
}

// Directory возвращает директорию данных мира.
func (cs *ChunkStorage) Directory() string {
	return cs.directory
}

// LoadChunk читает чанк из файла. Если файл отсутствует, возвращается
// world.ErrChunkMissing и вызывающий генерирует чанк заново.
func (cs *ChunkStorage) LoadChunk(ctx context.Context, chunkCoords coords.ChunkCoords) (*world.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := cs.chunkFilePath(chunkCoords)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, world.ErrChunkMissing
	}
	if err != nil {
		logging.Warn("Не удалось прочитать файл чанка %s: %v", path, err)
		return nil, fmt.Errorf("ошибка чтения файла чанка %s: %w", path, err)
	}

	chunk, err := world.DeserializeChunk(data)
	if err != nil {
		logging.Warn("Не удалось декодировать данные чанка из файла %s: %v", path, err)
		return nil, fmt.Errorf("ошибка декодирования чанка %v: %w", chunkCoords, err)
	}

	logging.Trace("Чанк %v загружен из файла %s", chunkCoords, path)
	return chunk, nil
}

// SaveChunk записывает чанк в файл.
func (cs *ChunkStorage) SaveChunk(ctx context.Context, chunkCoords coords.ChunkCoords, chunk *world.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := cs.chunkFilePath(chunkCoords)

	if err := os.WriteFile(path, chunk.Serialize(), 0644); err != nil {
		logging.Warn("Не удалось записать файл чанка %s: %v", path, err)
		return fmt.Errorf("ошибка записи файла чанка %s: %w", path, err)
	}

	logging.Trace("Чанк %v сохранён в файл %s", chunkCoords, path)
	return nil
}

// chunkFilePath возвращает путь к файлу чанка.
func (cs *ChunkStorage) chunkFilePath(chunkCoords coords.ChunkCoords) string {
	return filepath.Join(cs.directory, fmt.Sprintf("%d_%d.chunk", chunkCoords.X, chunkCoords.Y))
}
