package client

import (
	"testing"

	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/game"
	"github.com/annel0/gemworld/internal/id"
	"github.com/annel0/gemworld/internal/protocol"
	"github.com/annel0/gemworld/internal/world"
)

// recordingSender запоминает отправленные серверу сообщения.
type recordingSender struct {
	sent []protocol.ToServer
}

func (s *recordingSender) SendToServer(msg protocol.ToServer) error {
	s.sent = append(s.sent, msg)
	return nil
}

func newTestPlayer(pos coords.TileCoords) (*PlayerEntity, *Map, *recordingSender) {
	clientMap := NewMap()
	clientMap.Apply(protocol.ProvideChunk{
		Coords: coords.ChunkCoords{X: 0, Y: 0},
		Chunk:  world.NewChunk(game.TileDirt),
	})

	player := NewPlayerEntity(id.GenerateWithTimestamp(), game.NewEntity(pos))
	return player, clientMap, &recordingSender{}
}

func TestMoveTowardsCheckedSendsRequestAndPredicts(t *testing.T) {
	player, clientMap, sender := newTestPlayer(coords.TileCoords{X: 5, Y: 5})

	if err := player.MoveTowardsChecked(coords.DirectionRight, clientMap, sender); err != nil {
		t.Fatalf("MoveTowardsChecked: %v", err)
	}

	if player.Entity.Pos != (coords.TileCoords{X: 6, Y: 5}) {
		t.Error("Сущность должна переместиться локально, не дожидаясь сервера")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("Ожидалась отправка 1 сообщения, отправлено %d", len(sender.sent))
	}

	move, ok := sender.sent[0].(protocol.MoveMyEntity)
	if !ok || move.RequestNumber != 0 || move.Direction != coords.DirectionRight {
		t.Errorf("Отправлено неверное сообщение: %+v", sender.sent[0])
	}
	if player.UnverifiedMovementCount() != 1 {
		t.Error("Предсказание должно ожидать сверки")
	}
}

func TestMovementRateIsLimited(t *testing.T) {
	player, clientMap, sender := newTestPlayer(coords.TileCoords{X: 5, Y: 5})

	if err := player.MoveTowardsChecked(coords.DirectionRight, clientMap, sender); err != nil {
		t.Fatalf("MoveTowardsChecked: %v", err)
	}

	// Сразу за первым перемещением второе не отправляется
	if err := player.MoveTowardsChecked(coords.DirectionRight, clientMap, sender); err != nil {
		t.Fatalf("MoveTowardsChecked: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("Темп перемещений не ограничен: отправлено %d сообщений", len(sender.sent))
	}

	// После истечения времени перемещения запрос отправляется
	player.Update(game.StandardMovementTime)
	if err := player.MoveTowardsChecked(coords.DirectionRight, clientMap, sender); err != nil {
		t.Fatalf("MoveTowardsChecked: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Error("Перемещение должно быть доступно после паузы")
	}

	// Номера запросов строго возрастают
	first := sender.sent[0].(protocol.MoveMyEntity)
	second := sender.sent[1].(protocol.MoveMyEntity)
	if second.RequestNumber != first.RequestNumber+1 {
		t.Errorf("Номера запросов должны возрастать: %d, %d", first.RequestNumber, second.RequestNumber)
	}
}

func TestBlockedMovementIsNotSent(t *testing.T) {
	player, clientMap, sender := newTestPlayer(coords.TileCoords{X: 5, Y: 5})

	clientMap.Apply(protocol.ChangeTile{Pos: coords.TileCoords{X: 6, Y: 5}, Tile: game.TileWater})

	if err := player.MoveTowardsChecked(coords.DirectionRight, clientMap, sender); err != nil {
		t.Fatalf("MoveTowardsChecked: %v", err)
	}

	if len(sender.sent) != 0 {
		t.Error("Запрещённое локально перемещение не должно отправляться серверу")
	}
	if player.Entity.Pos != (coords.TileCoords{X: 5, Y: 5}) {
		t.Error("Сущность не должна перемещаться")
	}
}

func TestReconciliationMatchingPrediction(t *testing.T) {
	player, clientMap, sender := newTestPlayer(coords.TileCoords{X: 5, Y: 5})

	_ = player.MoveTowardsChecked(coords.DirectionRight, clientMap, sender)

	player.ReceivedMovementReconciliation(0, coords.TileCoords{X: 6, Y: 5})

	if player.Entity.Pos != (coords.TileCoords{X: 6, Y: 5}) {
		t.Error("Совпавшее предсказание не должно менять позицию")
	}
	if player.UnverifiedMovementCount() != 0 {
		t.Error("Сверенное предсказание должно быть удалено")
	}
}

func TestReconciliationUnknownRequestNumberIgnored(t *testing.T) {
	player, _, _ := newTestPlayer(coords.TileCoords{X: 5, Y: 5})

	player.ReceivedMovementReconciliation(99, coords.TileCoords{X: 1, Y: 1})

	if player.Entity.Pos != (coords.TileCoords{X: 5, Y: 5}) {
		t.Error("Сверка с неизвестным номером должна игнорироваться")
	}
}

// Сценарий: клиент отправляет запросы 0, 1, 2 (предсказания A, B, C), сервер
// подтверждает 0 и 1, отклоняет 2, а ответы приходят в порядке 1, 0, 2.
// Сверки 0 и 1 совпадают с предсказаниями, сверка 2 возвращает сущность из C
// в B.
func TestReconciliationOutOfOrderWithRejection(t *testing.T) {
	player, clientMap, sender := newTestPlayer(coords.TileCoords{X: 5, Y: 5})

	positions := []coords.TileCoords{
		{X: 6, Y: 5}, // A, запрос 0
		{X: 7, Y: 5}, // B, запрос 1
		{X: 8, Y: 5}, // C, запрос 2
	}

	for range positions {
		player.Update(game.StandardMovementTime)
		if err := player.MoveTowardsChecked(coords.DirectionRight, clientMap, sender); err != nil {
			t.Fatalf("MoveTowardsChecked: %v", err)
		}
	}

	if len(sender.sent) != 3 {
		t.Fatalf("Ожидалось 3 запроса, отправлено %d", len(sender.sent))
	}
	if player.Entity.Pos != positions[2] {
		t.Fatalf("Локальная позиция должна быть C, получено %v", player.Entity.Pos)
	}

	// Ответы не по порядку: 1, затем 0, затем отклонённый 2 (сервер остался
	// на позиции B)
	player.ReceivedMovementReconciliation(1, positions[1])
	player.ReceivedMovementReconciliation(0, positions[0])
	player.ReceivedMovementReconciliation(2, positions[1])

	if player.Entity.Pos != positions[1] {
		t.Errorf("Сущность должна вернуться в B (%v), получено %v", positions[1], player.Entity.Pos)
	}
	if player.UnverifiedMovementCount() != 0 {
		t.Error("Все предсказания должны быть сверены")
	}
}

func TestMapAppliesServerMessages(t *testing.T) {
	clientMap := NewMap()

	chunkCoords := coords.ChunkCoords{X: 0, Y: 0}
	clientMap.Apply(protocol.ProvideChunk{Coords: chunkCoords, Chunk: world.NewChunk(game.TileGrass)})

	if clientMap.LoadedChunkCount() != 1 {
		t.Fatal("Чанк должен быть загружен")
	}

	// Изменение тайла
	pos := coords.TileCoords{X: 4, Y: 4}
	clientMap.Apply(protocol.ChangeTile{Pos: pos, Tile: game.TileDirt})
	if tile, _ := clientMap.TileAt(pos); tile != game.TileDirt {
		t.Error("Изменение тайла не применилось")
	}

	// Появление и перемещение чужой сущности
	otherID := id.GenerateWithTimestamp()
	clientMap.Apply(protocol.ProvideEntity{EntityID: otherID, Entity: game.NewEntity(coords.TileCoords{X: 1, Y: 1})})

	if clientMap.IsPositionFree(coords.TileCoords{X: 1, Y: 1}) {
		t.Error("Позиция с чужой сущностью не должна быть свободной")
	}

	clientMap.Apply(protocol.MoveEntity{EntityID: otherID, NewPosition: coords.TileCoords{X: 2, Y: 1}, Direction: coords.DirectionRight})
	if clientMap.Entity(otherID).Pos != (coords.TileCoords{X: 2, Y: 1}) {
		t.Error("Перемещение чужой сущности не применилось")
	}

	// Выгрузка
	clientMap.Apply(protocol.ShouldUnloadEntity{EntityID: otherID})
	if clientMap.Entity(otherID) != nil {
		t.Error("Сущность должна быть выгружена")
	}

	clientMap.Apply(protocol.ShouldUnloadChunk{Coords: chunkCoords})
	if clientMap.LoadedChunkCount() != 0 {
		t.Error("Чанк должен быть выгружен")
	}
}
