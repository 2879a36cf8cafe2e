package client

import (
	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/game"
	"github.com/annel0/gemworld/internal/id"
	"github.com/annel0/gemworld/internal/logging"
	"github.com/annel0/gemworld/internal/protocol"
)

// Sender отправляет сообщения серверу. Реализуется network.Connection.
type Sender interface {
	SendToServer(msg protocol.ToServer) error
}

// PlayerEntity собственная сущность клиента вместе с состоянием предсказания
// перемещений.
type PlayerEntity struct {
	ID       id.Id
	Entity   *game.Entity

	// nextRequestNumber номер следующего запроса MoveMyEntity; строго
	// возрастает в пределах сессии
	nextRequestNumber uint32

	// unverifiedMovements предсказанные позиции по номерам запросов, ещё не
	// сверенные с сервером
	unverifiedMovements map[uint32]coords.TileCoords

	// timeSinceLastMovement секунды, прошедшие с последней отправки запроса
	// на перемещение
	timeSinceLastMovement float64
}

// NewPlayerEntity создаёт состояние собственной сущности из ответа welcome.
func NewPlayerEntity(entityID id.Id, entity *game.Entity) *PlayerEntity {
	return &PlayerEntity{
		ID:                  entityID,
		Entity:              entity,
		unverifiedMovements: make(map[uint32]coords.TileCoords),
		// Первое перемещение доступно сразу
		timeSinceLastMovement: game.StandardMovementTime * game.SmashableTileMovementTimeModifier,
	}
}

// Update учитывает прошедшее время кадра.
func (p *PlayerEntity) Update(delta float64) {
	p.timeSinceLastMovement += delta
}

// MoveTowardsChecked пытается переместить сущность в указанном направлении.
// Перемещение выполняется локально (предсказание), запрос отправляется
// серверу, а предсказанная позиция запоминается до получения сверки. Новый
// запрос не отправляется, пока не истечёт время перемещения на тайл
// назначения.
func (p *PlayerEntity) MoveTowardsChecked(direction coords.Direction, clientMap *Map, conn Sender) error {
	newPos := direction.Apply(p.Entity.Pos)

	destinationTile, loaded := clientMap.TileAt(newPos)
	if !loaded {
		return nil
	}

	// Ограничение темпа: время перемещения зависит от тайла назначения
	if p.timeSinceLastMovement < p.Entity.MovementTime(destinationTile) {
		return nil
	}

	if !clientMap.IsPositionFree(newPos) {
		logging.Trace("Позиция %v занята, перемещение не отправлено", newPos)
		return nil
	}

	logging.Trace("Предсказанное перемещение #%d в %v", p.nextRequestNumber, newPos)

	// Локально применяем перемещение, не дожидаясь сервера
	p.Entity.Pos = newPos
	p.Entity.Direction = direction

	msg := protocol.MoveMyEntity{RequestNumber: p.nextRequestNumber, Direction: direction}
	if err := conn.SendToServer(msg); err != nil {
		return err
	}

	p.unverifiedMovements[p.nextRequestNumber] = newPos
	p.nextRequestNumber++
	p.timeSinceLastMovement = 0

	return nil
}

// ReceivedMovementReconciliation сверяет предсказание с позицией, которую
// сообщил сервер. При расхождении сущность переставляется в серверную позицию;
// неизвестный номер запроса логируется и игнорируется. Запись предсказания
// удаляется в любом случае.
func (p *PlayerEntity) ReceivedMovementReconciliation(requestNumber uint32, position coords.TileCoords) {
	predicted, known := p.unverifiedMovements[requestNumber]
	if !known {
		logging.Warn("Получена сверка для неизвестного запроса перемещения #%d", requestNumber)
		return
	}

	if predicted != position {
		logging.Warn("Предсказание #%d (%v) расходится с серверной позицией %v",
			requestNumber, predicted, position)
		p.Entity.Pos = position
	}

	delete(p.unverifiedMovements, requestNumber)
}

// UnverifiedMovementCount возвращает количество ещё не сверенных предсказаний.
func (p *PlayerEntity) UnverifiedMovementCount() int {
	return len(p.unverifiedMovements)
}
