package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/game"
	"github.com/annel0/gemworld/internal/id"
	"github.com/annel0/gemworld/internal/world"
)

func TestChunkStorageRoundTrip(t *testing.T) {
	storage, err := NewChunkStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewChunkStorage: %v", err)
	}

	ctx := context.Background()
	c := coords.ChunkCoords{X: -3, Y: 7}

	chunk := world.NewChunk(game.TileGrass)
	chunk.SetTileAtOffset(coords.OffsetCoords{X: 4, Y: 9}, game.TileRockDiamond)

	if err := storage.SaveChunk(ctx, c, chunk); err != nil {
		t.Fatalf("SaveChunk: %v", err)
	}

	loaded, err := storage.LoadChunk(ctx, c)
	if err != nil {
		t.Fatalf("LoadChunk: %v", err)
	}
	if loaded.Tiles != chunk.Tiles {
		t.Error("Тайлы не совпали после round-trip через файл")
	}
}

func TestChunkStorageFileLayout(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewChunkStorage(dir)
	if err != nil {
		t.Fatalf("NewChunkStorage: %v", err)
	}

	c := coords.ChunkCoords{X: -5, Y: 12}
	if err := storage.SaveChunk(context.Background(), c, world.NewChunk(game.TileDirt)); err != nil {
		t.Fatalf("SaveChunk: %v", err)
	}

	expected := filepath.Join(dir, "-5_12.chunk")
	if storage.chunkFilePath(c) != expected {
		t.Errorf("Ожидался путь %s, получен %s", expected, storage.chunkFilePath(c))
	}
}

func TestChunkStorageMissingChunk(t *testing.T) {
	storage, err := NewChunkStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewChunkStorage: %v", err)
	}

	_, err = storage.LoadChunk(context.Background(), coords.ChunkCoords{X: 1, Y: 1})
	if !errors.Is(err, world.ErrChunkMissing) {
		t.Errorf("Ожидался ErrChunkMissing, получено %v", err)
	}
}

func TestMemoryPlayerRepo(t *testing.T) {
	repo := NewMemoryPlayerRepo()
	ctx := context.Background()

	clientID := id.GenerateRandom()

	// Первый вход: записи нет
	_, _, found, err := repo.LoadPlayer(ctx, clientID)
	if err != nil {
		t.Fatalf("LoadPlayer: %v", err)
	}
	if found {
		t.Fatal("Запись не должна существовать до сохранения")
	}

	entityID := id.GenerateWithTimestamp()
	entity := game.NewEntity(coords.TileCoords{X: 11, Y: -4})
	entity.HairStyle = game.HairStyleMohawk
	entity.HasRunningShoes = true

	if err := repo.SavePlayer(ctx, clientID, entityID, entity); err != nil {
		t.Fatalf("SavePlayer: %v", err)
	}

	loadedID, loaded, found, err := repo.LoadPlayer(ctx, clientID)
	if err != nil {
		t.Fatalf("LoadPlayer: %v", err)
	}
	if !found {
		t.Fatal("Сохранённая запись не найдена")
	}
	if loadedID != entityID {
		t.Error("Идентификатор сущности не совпал")
	}
	if loaded.Pos != entity.Pos || loaded.HairStyle != game.HairStyleMohawk || !loaded.HasRunningShoes {
		t.Errorf("Атрибуты сущности не совпали: %+v", loaded)
	}

	if err := repo.DeletePlayer(ctx, clientID); err != nil {
		t.Fatalf("DeletePlayer: %v", err)
	}
	if _, _, found, _ := repo.LoadPlayer(ctx, clientID); found {
		t.Error("Запись должна исчезнуть после удаления")
	}
}
