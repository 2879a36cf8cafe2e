package world

import (
	"context"
	"testing"

	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/game"
	"github.com/annel0/gemworld/internal/id"
)

// memoryChunkStore хранилище чанков в памяти для тестов.
type memoryChunkStore struct {
	chunks map[coords.ChunkCoords][]byte
	loads  int
	saves  int
}

func newMemoryChunkStore() *memoryChunkStore {
	return &memoryChunkStore{chunks: make(map[coords.ChunkCoords][]byte)}
}

func (s *memoryChunkStore) LoadChunk(_ context.Context, c coords.ChunkCoords) (*Chunk, error) {
	s.loads++
	data, exists := s.chunks[c]
	if !exists {
		return nil, ErrChunkMissing
	}
	return DeserializeChunk(data)
}

func (s *memoryChunkStore) SaveChunk(_ context.Context, c coords.ChunkCoords, chunk *Chunk) error {
	s.saves++
	s.chunks[c] = chunk.Serialize()
	return nil
}

func newTestMap() *Map {
	return NewMap(FlatGenerator{}, newMemoryChunkStore())
}

func addEntityAt(m *Map, pos coords.TileCoords) id.Id {
	entityID := id.GenerateWithTimestamp()
	m.AddEntity(entityID, game.NewEntity(pos))
	return entityID
}

func TestAddRemoveEntity(t *testing.T) {
	m := newTestMap()
	entityID := addEntityAt(m, coords.TileCoords{X: 3, Y: 4})

	entity := m.EntityByID(entityID)
	if entity == nil {
		t.Fatal("Сущность не найдена после добавления")
	}
	if entity.Pos != (coords.TileCoords{X: 3, Y: 4}) {
		t.Errorf("Неверная позиция сущности: %v", entity.Pos)
	}

	removed := m.RemoveEntity(entityID)
	if removed == nil {
		t.Fatal("RemoveEntity не вернул сущность")
	}
	if m.EntityByID(entityID) != nil {
		t.Error("Сущность осталась в мире после удаления")
	}
	if m.RemoveEntity(entityID) != nil {
		t.Error("Повторное удаление должно возвращать nil")
	}
}

func TestEntitiesInChunk(t *testing.T) {
	m := newTestMap()

	inside := addEntityAt(m, coords.TileCoords{X: 5, Y: 5})
	addEntityAt(m, coords.TileCoords{X: 20, Y: 5}) // чанк (1, 0)

	found := m.EntitiesInChunk(coords.ChunkCoords{X: 0, Y: 0})
	if len(found) != 1 {
		t.Fatalf("Ожидалась 1 сущность в чанке, найдено %d", len(found))
	}
	if found[0].ID != inside {
		t.Error("Найдена не та сущность")
	}
}

func TestMoveEntityTowards(t *testing.T) {
	m := newTestMap()
	m.AddChunk(coords.ChunkCoords{X: 0, Y: 0}, NewChunk(game.TileDirt))

	entityID := addEntityAt(m, coords.TileCoords{X: 5, Y: 5})

	movement := m.MoveEntityTowards(entityID, coords.DirectionRight)
	if movement == nil {
		t.Fatal("Перемещение по свободному тайлу должно быть разрешено")
	}
	if movement.OldPosition != (coords.TileCoords{X: 5, Y: 5}) || movement.NewPosition != (coords.TileCoords{X: 6, Y: 5}) {
		t.Errorf("Неверные позиции перемещения: %+v", movement)
	}
	if movement.SmashedTile != nil {
		t.Error("На обычной земле нечего разбивать")
	}
	if m.EntityByID(entityID).Pos != (coords.TileCoords{X: 6, Y: 5}) {
		t.Error("Позиция сущности в мире не обновилась")
	}
}

func TestMoveEntityTowardsBlockedByWater(t *testing.T) {
	m := newTestMap()
	chunk := NewChunk(game.TileDirt)
	chunk.SetTileAtOffset(coords.OffsetCoords{X: 5, Y: 4}, game.TileWater)
	m.AddChunk(coords.ChunkCoords{X: 0, Y: 0}, chunk)

	entityID := addEntityAt(m, coords.TileCoords{X: 5, Y: 5})

	if m.MoveEntityTowards(entityID, coords.DirectionDown) != nil {
		t.Error("Перемещение на блокирующий тайл должно быть запрещено")
	}

	entity := m.EntityByID(entityID)
	if entity.Pos != (coords.TileCoords{X: 5, Y: 5}) {
		t.Error("Позиция не должна меняться при отказе")
	}
	// Сущность поворачивается даже при отказе
	if entity.Direction != coords.DirectionDown {
		t.Error("Направление взгляда должно обновляться даже при отказе")
	}
}

func TestMoveEntityTowardsBlockedByEntity(t *testing.T) {
	m := newTestMap()
	m.AddChunk(coords.ChunkCoords{X: 0, Y: 0}, NewChunk(game.TileDirt))

	mover := addEntityAt(m, coords.TileCoords{X: 5, Y: 5})
	addEntityAt(m, coords.TileCoords{X: 6, Y: 5})

	if m.MoveEntityTowards(mover, coords.DirectionRight) != nil {
		t.Error("Перемещение на занятый тайл должно быть запрещено")
	}
}

func TestMoveEntityTowardsUnloadedChunk(t *testing.T) {
	m := newTestMap()
	// Чанков нет вовсе: тайл назначения неизвестен

	entityID := addEntityAt(m, coords.TileCoords{X: 5, Y: 5})

	if m.MoveEntityTowards(entityID, coords.DirectionUp) != nil {
		t.Error("Перемещение в нерезидентный чанк должно быть запрещено")
	}
}

func TestMoveEntityTowardsSmashesRock(t *testing.T) {
	m := newTestMap()
	chunk := NewChunk(game.TileDirt)
	chunk.SetTileAtOffset(coords.OffsetCoords{X: 1, Y: 0}, game.TileRockEmerald)
	m.AddChunk(coords.ChunkCoords{X: 0, Y: 0}, chunk)

	entityID := addEntityAt(m, coords.TileCoords{X: 0, Y: 0})

	movement := m.MoveEntityTowards(entityID, coords.DirectionRight)
	if movement == nil {
		t.Fatal("Ход на разбиваемый тайл должен быть разрешён")
	}
	if movement.SmashedTile == nil || *movement.SmashedTile != game.TileRockEmerald {
		t.Fatalf("Ожидался разбитый изумрудный тайл, получено %+v", movement.SmashedTile)
	}

	// Тайл заменён, сущность стоит на нём
	tile, loaded := m.TileAt(coords.TileCoords{X: 1, Y: 0})
	if !loaded || tile != game.TileDirt {
		t.Errorf("Ожидалась земля на месте скалы, получено %v", tile)
	}
	if m.EntityByID(entityID).Pos != (coords.TileCoords{X: 1, Y: 0}) {
		t.Error("Сущность должна закончить ход на разбитом тайле")
	}
}

func TestBombLifecycle(t *testing.T) {
	m := newTestMap()

	owner := id.GenerateRandom()
	other := id.GenerateRandom()

	m.SetBombAt(coords.TileCoords{X: 3, Y: 3}, owner)
	m.SetBombAt(coords.TileCoords{X: 17, Y: 3}, owner)   // чанк (1, 0) — в радиусе 3x3
	m.SetBombAt(coords.TileCoords{X: 100, Y: 100}, owner) // далеко за пределами
	m.SetBombAt(coords.TileCoords{X: 4, Y: 4}, other)

	taken := m.TakeBombsPlacedByInAndAroundChunk(owner, coords.ChunkCoords{X: 0, Y: 0})
	if len(taken) != 2 {
		t.Fatalf("Ожидалось 2 бомбы, получено %d", len(taken))
	}

	// Повторный подрыв ничего не возвращает
	if len(m.TakeBombsPlacedByInAndAroundChunk(owner, coords.ChunkCoords{X: 0, Y: 0})) != 0 {
		t.Error("Бомбы должны удаляться при подрыве")
	}

	// Чужая бомба и дальняя бомба остаются
	if len(m.TakeBombsPlacedByInAndAroundChunk(other, coords.ChunkCoords{X: 0, Y: 0})) != 1 {
		t.Error("Бомба другого владельца должна была остаться")
	}
	if len(m.TakeBombsPlacedByInAndAroundChunk(owner, coords.ChunkCoords{X: 6, Y: 6})) != 1 {
		t.Error("Дальняя бомба должна была остаться")
	}
}

func TestChunkReferenceCounting(t *testing.T) {
	m := newTestMap()
	c := coords.ChunkCoords{X: 2, Y: -1}

	m.AddChunk(c, NewChunk(game.TileGrass))
	m.ChunkInUse(c)
	m.ChunkInUse(c)

	if m.ChunkRefCount(c) != 2 {
		t.Fatalf("Ожидался счётчик 2, получен %d", m.ChunkRefCount(c))
	}

	if m.ChunkNotInUse(c) != nil {
		t.Error("Чанк с ненулевым счётчиком не должен выгружаться")
	}

	unloaded := m.ChunkNotInUse(c)
	if unloaded == nil {
		t.Fatal("Последний отказ от чанка должен вернуть его для сохранения")
	}
	if m.LoadedChunkAt(c) != nil {
		t.Error("Выгруженный чанк не должен оставаться резидентным")
	}
}

func TestGetOrLoadOrGenerateChunk(t *testing.T) {
	store := newMemoryChunkStore()
	m := NewMap(FlatGenerator{}, store)
	ctx := context.Background()
	c := coords.ChunkCoords{X: 0, Y: 0}

	// Хранилище пусто: чанк генерируется
	chunk, err := m.GetOrLoadOrGenerateChunk(ctx, c)
	if err != nil {
		t.Fatalf("Неожиданная ошибка: %v", err)
	}
	if chunk.TileAtOffset(coords.OffsetCoords{X: 0, Y: 0}) != game.TileGrass {
		t.Error("FlatGenerator должен заполнять чанк травой")
	}

	// Повторный запрос обслуживается из резидентных без обращения к хранилищу
	loadsBefore := store.loads
	again, err := m.GetOrLoadOrGenerateChunk(ctx, c)
	if err != nil {
		t.Fatalf("Неожиданная ошибка: %v", err)
	}
	if again.Tiles != chunk.Tiles {
		t.Error("Повторный запрос должен вернуть тот же резидентный чанк")
	}
	if store.loads != loadsBefore {
		t.Error("Резидентный чанк не должен загружаться из хранилища")
	}

	// Сохранённый на диске чанк загружается, а не генерируется заново
	saved := NewChunk(game.TileDirt)
	other := coords.ChunkCoords{X: 9, Y: 9}
	if err := store.SaveChunk(ctx, other, saved); err != nil {
		t.Fatalf("SaveChunk: %v", err)
	}

	loaded, err := m.GetOrLoadOrGenerateChunk(ctx, other)
	if err != nil {
		t.Fatalf("Неожиданная ошибка: %v", err)
	}
	if loaded.TileAtOffset(coords.OffsetCoords{X: 7, Y: 7}) != game.TileDirt {
		t.Error("Чанк должен был загрузиться из хранилища")
	}
}
