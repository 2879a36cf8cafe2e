package protocol

import (
	"bytes"
	"testing"

	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/game"
	"github.com/annel0/gemworld/internal/id"
	"github.com/annel0/gemworld/internal/world"
)

func TestToServerRoundTrip(t *testing.T) {
	clientID := id.GenerateRandom()

	messages := []ToServer{
		Hello{},
		Hello{ClientID: &clientID},
		MoveMyEntity{RequestNumber: 42, Direction: coords.DirectionLeft},
		PlaceBomb{},
		DetonateBombs{},
		PurchaseSingleItem{Item: PurchasableItem{BoolItem: game.BoolItemRunningShoes}},
		PurchaseSingleItem{Item: PurchasableItem{IsQuantitative: true, QuantitativeItem: game.QuantitativeItemBomb}},
		PurchaseItemQuantity{Item: game.QuantitativeItemBomb, Quantity: 3},
	}

	for _, msg := range messages {
		decoded, err := UnmarshalToServer(MarshalToServer(msg))
		if err != nil {
			t.Fatalf("%v: ошибка декодирования: %v", msg, err)
		}

		switch m := msg.(type) {
		case Hello:
			d, ok := decoded.(Hello)
			if !ok {
				t.Fatalf("%v: декодирован неверный тип %T", msg, decoded)
			}
			if (m.ClientID == nil) != (d.ClientID == nil) {
				t.Errorf("%v: потерян опциональный идентификатор", msg)
			}
			if m.ClientID != nil && *m.ClientID != *d.ClientID {
				t.Errorf("%v: идентификатор исказился", msg)
			}
		default:
			if decoded != msg {
				t.Errorf("Ожидалось %v, получено %v", msg, decoded)
			}
		}
	}
}

func TestFromServerRoundTrip(t *testing.T) {
	entityID := id.GenerateWithTimestamp()
	clientID := id.GenerateRandom()

	entity := game.NewEntity(coords.TileCoords{X: -7, Y: 13})
	entity.Direction = coords.DirectionUp
	entity.HairStyle = game.HairStyleFringe
	entity.HasRunningShoes = true
	entity.GemCollection.IncreaseQuantity(game.GemRuby, 9)
	entity.ItemInventory.GiveQuantity(game.QuantitativeItemBomb, 2)
	entity.ItemInventory.Give(game.BoolItemRunningShoes)

	chunk := world.NewChunk(game.TileGrass)
	chunk.SetTileAtOffset(coords.OffsetCoords{X: 3, Y: 14}, game.TileRockRuby)

	messages := []FromServer{
		Welcome{Version: Version, ClientID: clientID, EntityID: entityID, Entity: entity},
		ProvideChunk{Coords: coords.ChunkCoords{X: -1, Y: 2}, Chunk: chunk},
		ShouldUnloadChunk{Coords: coords.ChunkCoords{X: 5, Y: 5}},
		ProvideEntity{EntityID: entityID, Entity: entity},
		ShouldUnloadEntity{EntityID: entityID},
		MoveEntity{EntityID: entityID, NewPosition: coords.TileCoords{X: 1, Y: -1}, Direction: coords.DirectionDown},
		YourEntityMoved{RequestNumber: 7, NewPosition: coords.TileCoords{X: 6, Y: 5}},
		ChangeTile{Pos: coords.TileCoords{X: 100, Y: -100}, Tile: game.TileDirt},
		BombPlacedMsg{PlacedBy: entityID, Pos: coords.TileCoords{X: 3, Y: 3}},
		BombsDetonatedMsg{PlacedBy: entityID, InAndAroundChunkCoords: coords.ChunkCoords{X: 0, Y: 0}},
		YouCollectedGems{Gem: game.GemEmerald, QuantityIncrease: 2},
	}

	for _, msg := range messages {
		data := MarshalFromServer(msg)

		decoded, err := UnmarshalFromServer(data)
		if err != nil {
			t.Fatalf("%v: ошибка декодирования: %v", msg, err)
		}

		// Повторная сериализация обязана дать идентичные байты: кодирование
		// стабильно
		if !bytes.Equal(data, MarshalFromServer(decoded)) {
			t.Errorf("%v: сериализация не стабильна", msg)
		}
	}
}

func TestWelcomeEntityFieldsSurviveRoundTrip(t *testing.T) {
	entity := game.NewEntity(coords.TileCoords{X: 4, Y: -9})
	entity.GemCollection.IncreaseQuantity(game.GemDiamond, 3)
	entity.ItemInventory.GiveQuantity(game.QuantitativeItemBomb, 5)

	msg := Welcome{
		Version:  Version,
		ClientID: id.GenerateRandom(),
		EntityID: id.GenerateWithTimestamp(),
		Entity:   entity,
	}

	decoded, err := UnmarshalFromServer(MarshalFromServer(msg))
	if err != nil {
		t.Fatalf("UnmarshalFromServer: %v", err)
	}

	welcome, ok := decoded.(Welcome)
	if !ok {
		t.Fatalf("Декодирован неверный тип %T", decoded)
	}

	if welcome.Version != Version || welcome.ClientID != msg.ClientID || welcome.EntityID != msg.EntityID {
		t.Error("Заголовочные поля Welcome исказились")
	}
	if welcome.Entity.Pos != entity.Pos {
		t.Error("Позиция сущности исказилась")
	}
	if welcome.Entity.GemCollection.GetQuantity(game.GemDiamond) != 3 {
		t.Error("Коллекция самоцветов исказилась")
	}
	if welcome.Entity.ItemInventory.HasHowMany(game.QuantitativeItemBomb) != 5 {
		t.Error("Инвентарь исказился")
	}
}

func TestUnmarshalRejectsMalformedData(t *testing.T) {
	if _, err := UnmarshalToServer([]byte{0xFF, 0xFF, 0xFF, 0xFF}); err == nil {
		t.Error("Неизвестный вариант должен быть отвергнут")
	}

	if _, err := UnmarshalToServer([]byte{}); err == nil {
		t.Error("Пустое сообщение должно быть отвергнуто")
	}

	// Обрезанный MoveMyEntity
	data := MarshalToServer(MoveMyEntity{RequestNumber: 1, Direction: coords.DirectionUp})
	if _, err := UnmarshalToServer(data[:len(data)-2]); err == nil {
		t.Error("Обрезанное сообщение должно быть отвергнуто")
	}

	// Лишние байты в конце
	if _, err := UnmarshalToServer(append(data, 0)); err == nil {
		t.Error("Сообщение с лишними байтами должно быть отвергнуто")
	}

	// Некорректное направление
	bad := MarshalToServer(MoveMyEntity{RequestNumber: 1})
	bad[len(bad)-4] = 99
	if _, err := UnmarshalToServer(bad); err == nil {
		t.Error("Некорректное направление должно быть отвергнуто")
	}
}
