package storage

import (
	"context"

	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/game"
	"github.com/annel0/gemworld/internal/id"
)

// PlayerRepo определяет интерфейс хранилища сущностей игроков. Записи
// привязаны к clientID — постоянному идентификатору клиента, который
// переживает отдельные сессии игры.
type PlayerRepo interface {
	// LoadPlayer загружает сущность игрока по идентификатору клиента.
	// Второй результат false означает, что клиент ещё не регистрировался.
	LoadPlayer(ctx context.Context, clientID id.Id) (id.Id, *game.Entity, bool, error)

	// SavePlayer сохраняет (создаёт или обновляет) сущность игрока.
	SavePlayer(ctx context.Context, clientID, entityID id.Id, entity *game.Entity) error

	// DeletePlayer удаляет запись игрока (для тестов и сброса).
	DeletePlayer(ctx context.Context, clientID id.Id) error

	// Close освобождает ресурсы хранилища.
	Close() error
}

// playerRecord промежуточное представление строки игрока. Закрытые перечисления
// кодируются своими стабильными 32-битными значениями.
type playerRecord struct {
	EntityID        string `json:"entity_id"`
	TileX           int32  `json:"tile_x"`
	TileY           int32  `json:"tile_y"`
	HairStyle       uint32 `json:"hair_style"`
	ClothingColour  uint32 `json:"clothing_colour"`
	SkinColour      uint32 `json:"skin_colour"`
	HairColour      uint32 `json:"hair_colour"`
	HasRunningShoes bool   `json:"has_running_shoes"`
}

func recordFromEntity(entityID id.Id, entity *game.Entity) playerRecord {
	return playerRecord{
		EntityID:        entityID.Encode(),
		TileX:           entity.Pos.X,
		TileY:           entity.Pos.Y,
		HairStyle:       uint32(entity.HairStyle),
		ClothingColour:  uint32(entity.ClothingColour),
		SkinColour:      uint32(entity.SkinColour),
		HairColour:      uint32(entity.HairColour),
		HasRunningShoes: entity.HasRunningShoes,
	}
}

func (r playerRecord) toEntity() (id.Id, *game.Entity, error) {
	entityID, err := id.Decode(r.EntityID)
	if err != nil {
		return id.Zero, nil, err
	}

	entity := game.NewEntity(coords.TileCoords{X: r.TileX, Y: r.TileY})
	entity.HairStyle = game.HairStyle(r.HairStyle)
	entity.ClothingColour = game.ClothingColour(r.ClothingColour)
	entity.SkinColour = game.SkinColour(r.SkinColour)
	entity.HairColour = game.HairColour(r.HairColour)
	entity.HasRunningShoes = r.HasRunningShoes

	return entityID, entity, nil
}
