package network

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/gorilla/websocket"

	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/eventbus"
	"github.com/annel0/gemworld/internal/game"
	"github.com/annel0/gemworld/internal/id"
	"github.com/annel0/gemworld/internal/logging"
	"github.com/annel0/gemworld/internal/protocol"
	"github.com/annel0/gemworld/internal/storage"
	"github.com/annel0/gemworld/internal/world"
)

// MaxLoadedChunksPerClient максимальное количество чанков, которые клиент
// держит загруженными. При превышении выгружается самый старый.
const MaxLoadedChunksPerClient = 12

// maxConsecutivePersistFailures после скольких подряд ошибок персистентности
// сессия принудительно закрывается.
const maxConsecutivePersistFailures = 3

// Handler обслуживает одно клиентское соединение: рукопожатие, основной цикл
// и завершение. Создаётся по одному на соединение и работает в собственной
// горутине.
type Handler struct {
	// Адрес удалённого клиента (для логов)
	address string

	gameMap    *world.Map
	chunkStore world.ChunkStore
	playerRepo storage.PlayerRepo

	bus      *eventbus.Bus
	receiver *eventbus.Receiver

	// Координаты чанков, загруженных удалённым клиентом, от самых старых к
	// самым свежим. Длина никогда не превышает MaxLoadedChunksPerClient.
	remoteLoadedChunkCoords []coords.ChunkCoords

	// Счётчик подряд идущих ошибок персистентности
	persistFailures int
}

// HandleConnection создаёт Handler для установленного WebSocket-соединения и
// обслуживает его до завершения.
func HandleConnection(ctx context.Context, ws *websocket.Conn, gameMap *world.Map,
	chunkStore world.ChunkStore, playerRepo storage.PlayerRepo, bus *eventbus.Bus) {

	conn := NewConnection(ws)

	handler := &Handler{
		address:    conn.RemoteAddr(),
		gameMap:    gameMap,
		chunkStore: chunkStore,
		playerRepo: playerRepo,
		bus:        bus,
		receiver:   bus.Subscribe(),
	}
	defer handler.receiver.Unsubscribe()

	metricActiveSessions.Inc()
	defer metricActiveSessions.Dec()

	if err := handler.handleWebsocketConnection(ctx, conn); err != nil {
		switch {
		case errors.Is(err, ErrClosed):
			// Обычное отключение
		case errors.Is(err, ErrResetWithoutClose):
			handler.log("Соединение закрыто без рукопожатия закрытия")
		default:
			handler.logError(err.Error())
		}
	}

	_ = conn.Close()
	logging.Info("Клиент отключился: %s", handler.address)
}

// handleWebsocketConnection выполняет обмен сообщениями hello/welcome, после
// чего передаёт управление основному циклу. По выходе из цикла выполняется
// завершение: освобождение чанков, сохранение и удаление сущности.
func (h *Handler) handleWebsocketConnection(ctx context.Context, conn *Connection) error {
	// Первым сообщением клиент обязан прислать hello
	msg, err := conn.Receive()
	if err != nil {
		return err
	}

	hello, isHello := msg.(protocol.Hello)
	if !isHello {
		h.logError("Вместо сообщения hello получено: " + msg.String())
		return nil
	}

	clientID, entityID, entity, err := h.resolvePlayer(ctx, hello)
	if err != nil {
		return err
	}

	// Отвечаем клиенту сообщением welcome
	welcome := protocol.Welcome{
		Version:  protocol.Version,
		ClientID: clientID,
		EntityID: entityID,
		Entity:   entity.Clone(),
	}
	if err := conn.Send(welcome); err != nil {
		return err
	}

	// Передаём клиенту чанки вокруг его сущности вместе с чужими сущностями
	// в этих чанках
	bootstrap, err := h.provideChunksAtAndSurrounding(ctx, entity.Pos.AsChunkCoords(), entityID)
	if err != nil {
		return err
	}
	for _, response := range bootstrap {
		if err := conn.Send(response); err != nil {
			return err
		}
	}

	// Помещаем сущность клиента в игровой мир и сообщаем об этом остальным
	// обработчикам
	h.gameMap.AddEntity(entityID, entity)
	h.publishAndDrain(ctx, world.EntityAdded(entityID))

	loopErr := h.handleEstablishedConnection(ctx, conn, entityID)

	// Сообщаем миру, что загруженные этим клиентом чанки больше не нужны
	// данной сессии
	for _, chunkCoords := range append([]coords.ChunkCoords(nil), h.remoteLoadedChunkCoords...) {
		if err := h.chunkNotNeeded(context.Background(), chunkCoords); err != nil {
			h.logWarn(err.Error())
		}
	}
	h.remoteLoadedChunkCoords = nil

	// Удаляем сущность из мира, сохраняем её и оповещаем остальные сессии
	if removed := h.gameMap.RemoveEntity(entityID); removed != nil {
		if err := h.playerRepo.SavePlayer(context.Background(), clientID, entityID, removed); err != nil {
			h.logWarn(fmt.Sprintf("Не удалось сохранить сущность игрока: %v", err))
		}
		h.bus.Publish(world.EntityRemoved(entityID, removed.Pos.AsChunkCoords()))
	}

	return loopErr
}

// resolvePlayer находит сущность вернувшегося клиента в хранилище или создаёт
// новую для нового клиента.
func (h *Handler) resolvePlayer(ctx context.Context, hello protocol.Hello) (id.Id, id.Id, *game.Entity, error) {
	if hello.ClientID != nil {
		clientID := *hello.ClientID
		h.log(fmt.Sprintf("Клиент предъявил существующий идентификатор: %v", clientID))

		entityID, entity, found, err := h.playerRepo.LoadPlayer(ctx, clientID)
		if err != nil {
			return id.Zero, id.Zero, nil, fmt.Errorf("ошибка загрузки игрока из хранилища: %w", err)
		}
		if found {
			return clientID, entityID, entity, nil
		}

		h.logWarn(fmt.Sprintf("В хранилище нет сущности для идентификатора клиента %v", clientID))
		return h.newPlayer(ctx, clientID)
	}

	clientID := id.GenerateRandom()
	h.log(fmt.Sprintf("Сгенерирован новый идентификатор клиента: %v", clientID))
	return h.newPlayer(ctx, clientID)
}

// newPlayer создаёт сущность для клиента и сразу записывает её в хранилище.
func (h *Handler) newPlayer(ctx context.Context, clientID id.Id) (id.Id, id.Id, *game.Entity, error) {
	entityID := id.GenerateWithTimestamp()
	entity := game.NewEntity(coords.TileCoords{X: 0, Y: 0})

	if err := h.playerRepo.SavePlayer(ctx, clientID, entityID, entity); err != nil {
		return id.Zero, id.Zero, nil, fmt.Errorf("ошибка создания игрока в хранилище: %w", err)
	}
	return clientID, entityID, entity, nil
}

// inboundMessage результат чтения из соединения.
type inboundMessage struct {
	msg protocol.ToServer
	err error
}

// handleEstablishedConnection основной цикл сессии: конкурентно ожидает
// входящие сообщения клиента, события шины изменений и сигнал завершения.
func (h *Handler) handleEstablishedConnection(ctx context.Context, conn *Connection, playerID id.Id) error {
	done := make(chan struct{})
	defer close(done)

	inbound := make(chan inboundMessage)
	go func() {
		for {
			msg, err := conn.Receive()
			select {
			case inbound <- inboundMessage{msg: msg, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case in := <-inbound:
			if in.err != nil {
				if errors.Is(in.err, ErrClosed) || errors.Is(in.err, ErrResetWithoutClose) {
					return in.err
				}
				return fmt.Errorf("ошибка приёма сообщения: %w", in.err)
			}

			h.log("Получено сообщение: " + in.msg.String())

			responses, err := h.handleMessage(ctx, in.msg, playerID)
			if err != nil {
				return err
			}
			for _, response := range responses {
				h.log("Ответное сообщение: " + response.String())
				if err := conn.Send(response); err != nil {
					return err
				}
			}

		case mod := <-h.receiver.Chan():
			if skipped := h.receiver.TakeSkipped(); skipped > 0 {
				h.logWarn(fmt.Sprintf("Пропущено %d событий на шине изменений карты", skipped))
			}

			if response := h.handleMapChange(mod); response != nil {
				h.log("Оповещение клиента об изменении мира: " + response.String())
				if err := conn.Send(response); err != nil {
					return err
				}
			}

		case <-ctx.Done():
			h.log("Закрытие соединения по сигналу завершения")
			return nil
		}
	}
}

// handleMessage формирует ответы на сообщение клиента.
func (h *Handler) handleMessage(ctx context.Context, msg protocol.ToServer, playerID id.Id) ([]protocol.FromServer, error) {
	switch m := msg.(type) {
	case protocol.Hello:
		// Повторное hello после рукопожатия игнорируется
		h.logWarn("Получено неожиданное сообщение hello: " + m.String())
		return nil, nil

	case protocol.MoveMyEntity:
		return h.handleMoveMyEntity(ctx, m, playerID)

	case protocol.PlaceBomb:
		h.handlePlaceBomb(ctx, playerID)
		return nil, nil

	case protocol.DetonateBombs:
		h.handleDetonateBombs(ctx, playerID)
		return nil, nil

	case protocol.PurchaseSingleItem:
		h.handlePurchaseSingleItem(m, playerID)
		return nil, nil

	case protocol.PurchaseItemQuantity:
		h.handlePurchaseItemQuantity(m, playerID)
		return nil, nil

	default:
		h.logWarn("Получено сообщение неизвестного типа: " + msg.String())
		return nil, nil
	}
}

// handleMoveMyEntity проверяет и применяет перемещение сущности клиента.
// Клиенту всегда отвечает YourEntityMoved: при отказе позиция в ответе равна
// прежней.
func (h *Handler) handleMoveMyEntity(ctx context.Context, msg protocol.MoveMyEntity, playerID id.Id) ([]protocol.FromServer, error) {
	var responses []protocol.FromServer

	movement := h.gameMap.MoveEntityTowards(playerID, msg.Direction)

	if movement == nil {
		// Перемещение запрещено: сообщаем клиенту фактическую позицию
		entity := h.gameMap.EntityByID(playerID)
		if entity == nil {
			return nil, nil
		}
		return []protocol.FromServer{
			protocol.YourEntityMoved{RequestNumber: msg.RequestNumber, NewPosition: entity.Pos},
		}, nil
	}

	// При переходе в новый чанк догружаем блок 3x3 вокруг назначения
	if movement.OldPosition.AsChunkCoords() != movement.NewPosition.AsChunkCoords() {
		provided, err := h.provideChunksAtAndSurrounding(ctx, movement.NewPosition.AsChunkCoords(), playerID)
		if err != nil {
			return nil, err
		}
		responses = append(responses, provided...)
	}

	// Оповещаем остальные сессии о перемещении
	h.publishAndDrain(ctx, world.EntityMoved(playerID, movement.OldPosition, movement.NewPosition, msg.Direction))

	responses = append(responses, protocol.YourEntityMoved{
		RequestNumber: msg.RequestNumber,
		NewPosition:   movement.NewPosition,
	})

	if movement.SmashedTile != nil {
		smashed := *movement.SmashedTile
		h.log(fmt.Sprintf("Разбит тайл %d на %v", smashed, movement.NewPosition))

		// Остальные клиенты узнают о замене тайла через шину
		h.publishAndDrain(ctx, world.TileChanged(movement.NewPosition, smashed.SmashedInto()))

		// Если тайл приносит самоцветы, начисляем случайное количество из
		// диапазона и сообщаем клиенту
		if gemYield := smashed.GetGemYield(); gemYield != nil {
			span := int(gemYield.MaximumQuantity-gemYield.MinimumQuantity) + 1
			quantityIncrease := gemYield.MinimumQuantity + uint32(rand.Intn(span))

			h.gameMap.MutateEntity(playerID, func(entity *game.Entity) {
				entity.GemCollection.IncreaseQuantity(gemYield.Gem, quantityIncrease)
			})

			responses = append(responses, protocol.YouCollectedGems{
				Gem:              gemYield.Gem,
				QuantityIncrease: quantityIncrease,
			})

			h.log(fmt.Sprintf("Добыто %d самоцветов типа %v", quantityIncrease, gemYield.Gem))
		}
	}

	return responses, nil
}

// handlePlaceBomb устанавливает бомбу на текущей позиции сущности, если в
// инвентаре есть хотя бы одна.
func (h *Handler) handlePlaceBomb(ctx context.Context, playerID id.Id) {
	entity := h.gameMap.EntityByID(playerID)
	if entity == nil || entity.ItemInventory.HasHowMany(game.QuantitativeItemBomb) < 1 {
		return
	}

	h.gameMap.SetBombAt(entity.Pos, playerID)
	h.publishAndDrain(ctx, world.BombPlaced(entity.Pos, playerID))

	h.gameMap.MutateEntity(playerID, func(e *game.Entity) {
		e.ItemInventory.TakeQuantity(game.QuantitativeItemBomb, 1)
	})
}

// handleDetonateBombs подрывает все бомбы клиента в блоке 3x3 вокруг его
// текущего чанка.
func (h *Handler) handleDetonateBombs(ctx context.Context, playerID id.Id) {
	var centerChunk coords.ChunkCoords
	if entity := h.gameMap.EntityByID(playerID); entity != nil {
		centerChunk = entity.Pos.AsChunkCoords()
	}

	h.gameMap.TakeBombsPlacedByInAndAroundChunk(playerID, centerChunk)

	h.publishAndDrain(ctx, world.BombsDetonated(playerID))
}

// handlePurchaseSingleItem списывает стоимость и выдаёт одну единицу предмета,
// если у игрока хватает самоцветов. Нехватка самоцветов не является ошибкой.
func (h *Handler) handlePurchaseSingleItem(msg protocol.PurchaseSingleItem, playerID id.Id) {
	h.gameMap.MutateEntity(playerID, func(entity *game.Entity) {
		if msg.Item.IsQuantitative {
			costGem, costQuantity := msg.Item.QuantitativeItem.GetPrice()
			if entity.GemCollection.GetQuantity(costGem) >= costQuantity {
				entity.GemCollection.DecreaseQuantity(costGem, costQuantity)
				entity.ItemInventory.GiveQuantity(msg.Item.QuantitativeItem, 1)
			}
			return
		}

		costGem, costQuantity := msg.Item.BoolItem.GetPrice()
		if entity.GemCollection.GetQuantity(costGem) >= costQuantity {
			entity.GemCollection.DecreaseQuantity(costGem, costQuantity)
			entity.ItemInventory.Give(msg.Item.BoolItem)

			if msg.Item.BoolItem == game.BoolItemRunningShoes {
				entity.HasRunningShoes = true
			}
		}
	})
}

// handlePurchaseItemQuantity покупка нескольких единиц количественного
// предмета за общую стоимость.
func (h *Handler) handlePurchaseItemQuantity(msg protocol.PurchaseItemQuantity, playerID id.Id) {
	costGem, singleCost := msg.Item.GetPrice()
	totalCost := singleCost * msg.Quantity

	h.gameMap.MutateEntity(playerID, func(entity *game.Entity) {
		if entity.GemCollection.GetQuantity(costGem) >= totalCost {
			entity.GemCollection.DecreaseQuantity(costGem, totalCost)
			entity.ItemInventory.GiveQuantity(msg.Item, msg.Quantity)
		}
	})
}

// handleMapChange превращает событие шины в сообщение клиенту (или nil),
// фильтруя по набору загруженных клиентом чанков.
func (h *Handler) handleMapChange(mod world.Modification) protocol.FromServer {
	switch mod.Kind {
	case world.ModTileChanged:
		if h.isChunkLoaded(mod.Pos.AsChunkCoords()) {
			return protocol.ChangeTile{Pos: mod.Pos, Tile: mod.Tile}
		}
		return nil

	case world.ModEntityMoved:
		wasInLoaded := h.isChunkLoaded(mod.OldPosition.AsChunkCoords())
		isInLoaded := h.isChunkLoaded(mod.NewPosition.AsChunkCoords())

		switch {
		case wasInLoaded && isInLoaded:
			// Сущность перемещается в пределах загруженных клиентом чанков
			return protocol.MoveEntity{EntityID: mod.EntityID, NewPosition: mod.NewPosition, Direction: mod.Direction}
		case wasInLoaded:
			// Сущность покинула загруженные чанки
			return protocol.ShouldUnloadEntity{EntityID: mod.EntityID}
		case isInLoaded:
			// Сущность только что вошла в загруженные чанки
			if entity := h.gameMap.EntityByID(mod.EntityID); entity != nil {
				return protocol.ProvideEntity{EntityID: mod.EntityID, Entity: entity}
			}
			return nil
		default:
			return nil
		}

	case world.ModEntityAdded:
		entity := h.gameMap.EntityByID(mod.EntityID)
		if entity != nil && h.isChunkLoaded(entity.Pos.AsChunkCoords()) {
			return protocol.ProvideEntity{EntityID: mod.EntityID, Entity: entity}
		}
		return nil

	case world.ModEntityRemoved:
		if h.isChunkLoaded(mod.LastChunk) {
			return protocol.ShouldUnloadEntity{EntityID: mod.EntityID}
		}
		return nil

	case world.ModBombPlaced:
		if h.isChunkLoaded(mod.Pos.AsChunkCoords()) {
			return protocol.BombPlacedMsg{PlacedBy: mod.EntityID, Pos: mod.Pos}
		}
		return nil

	case world.ModBombsDetonated:
		entity := h.gameMap.EntityByID(mod.EntityID)
		if entity == nil {
			return nil
		}
		centerChunk := entity.Pos.AsChunkCoords()
		if h.isChunkLoaded(centerChunk) {
			return protocol.BombsDetonatedMsg{PlacedBy: mod.EntityID, InAndAroundChunkCoords: centerChunk}
		}
		return nil

	default:
		return nil
	}
}

// provideChunkWithEntities готовит сообщения, передающие клиенту чанк и всех
// чужих сущностей в нём. Координаты добавляются в набор загруженных клиентом
// чанков; при превышении лимита самый старый чанк выгружается.
func (h *Handler) provideChunkWithEntities(ctx context.Context, chunkCoords coords.ChunkCoords, playerID id.Id) ([]protocol.FromServer, error) {
	var msgs []protocol.FromServer

	if index := h.loadedChunkIndex(chunkCoords); index >= 0 {
		// Клиент уже держит этот чанк: переносим координаты в конец списка,
		// чтобы чанк не был выгружен как самый старый
		h.remoteLoadedChunkCoords = append(
			append(h.remoteLoadedChunkCoords[:index:index], h.remoteLoadedChunkCoords[index+1:]...),
			chunkCoords)
	} else {
		chunk, err := h.gameMap.GetOrLoadOrGenerateChunk(ctx, chunkCoords)
		if err != nil {
			if fatal := h.persistFailure(err); fatal {
				return nil, err
			}
			return msgs, nil
		}
		h.persistSucceeded()

		msgs = append(msgs, protocol.ProvideChunk{Coords: chunkCoords, Chunk: chunk})

		// Сущности чанка, кроме собственной сущности этого клиента
		for _, entry := range h.gameMap.EntitiesInChunk(chunkCoords) {
			if entry.ID != playerID {
				msgs = append(msgs, protocol.ProvideEntity{EntityID: entry.ID, Entity: entry.Entity})
			}
		}

		h.remoteLoadedChunkCoords = append(h.remoteLoadedChunkCoords, chunkCoords)
		h.gameMap.ChunkInUse(chunkCoords)
	}

	// Лимит превышен: выгружаем самый старый чанк вместе с его сущностями
	if len(h.remoteLoadedChunkCoords) > MaxLoadedChunksPerClient {
		oldest := h.remoteLoadedChunkCoords[0]
		h.remoteLoadedChunkCoords = append([]coords.ChunkCoords(nil), h.remoteLoadedChunkCoords[1:]...)

		for _, entry := range h.gameMap.EntitiesInChunk(oldest) {
			msgs = append(msgs, protocol.ShouldUnloadEntity{EntityID: entry.ID})
		}
		msgs = append(msgs, protocol.ShouldUnloadChunk{Coords: oldest})

		if err := h.chunkNotNeeded(ctx, oldest); err != nil {
			return nil, err
		}
	}

	return msgs, nil
}

// provideChunksAtAndSurrounding вызывает provideChunkWithEntities для
// указанных координат и восьми соседних.
func (h *Handler) provideChunksAtAndSurrounding(ctx context.Context, center coords.ChunkCoords, playerID id.Id) ([]protocol.FromServer, error) {
	var msgs []protocol.FromServer

	for xOffset := int32(-1); xOffset <= 1; xOffset++ {
		for yOffset := int32(-1); yOffset <= 1; yOffset++ {
			chunkCoords := coords.ChunkCoords{X: center.X + xOffset, Y: center.Y + yOffset}

			provided, err := h.provideChunkWithEntities(ctx, chunkCoords, playerID)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, provided...)
		}
	}

	return msgs, nil
}

// chunkNotNeeded сообщает миру, что чанк больше не нужен клиенту этой сессии.
// Если чанк не нужен больше никому, он сохраняется в хранилище.
func (h *Handler) chunkNotNeeded(ctx context.Context, chunkCoords coords.ChunkCoords) error {
	unloaded := h.gameMap.ChunkNotInUse(chunkCoords)
	if unloaded == nil {
		return nil
	}

	if err := h.chunkStore.SaveChunk(ctx, chunkCoords, unloaded); err != nil {
		if fatal := h.persistFailure(err); fatal {
			return err
		}
		return nil
	}

	h.persistSucceeded()
	return nil
}

// persistFailure учитывает ошибку персистентности. Возвращает true, когда
// достигнут предел подряд идущих ошибок и сессию следует закрыть.
func (h *Handler) persistFailure(err error) bool {
	h.persistFailures++
	h.logWarn(fmt.Sprintf("Ошибка персистентности (%d подряд): %v", h.persistFailures, err))
	return h.persistFailures >= maxConsecutivePersistFailures
}

func (h *Handler) persistSucceeded() {
	h.persistFailures = 0
}

// publishAndDrain публикует событие на шине и немедленно забирает одно событие
// из собственного приёмника, чтобы сессия не получила обратно причину,
// созданную ею самой.
func (h *Handler) publishAndDrain(ctx context.Context, mod world.Modification) {
	h.bus.Publish(mod)
	metricModificationsPublished.Inc()

	if _, err := h.receiver.Recv(ctx); err != nil {
		var lagged *eventbus.LaggedError
		if errors.As(err, &lagged) {
			h.logWarn(fmt.Sprintf("Пропущено %d событий на шине изменений карты", lagged.Skipped))
		}
	}
}

// isChunkLoaded сообщает, держит ли клиент чанк загруженным.
func (h *Handler) isChunkLoaded(chunkCoords coords.ChunkCoords) bool {
	return h.loadedChunkIndex(chunkCoords) >= 0
}

func (h *Handler) loadedChunkIndex(chunkCoords coords.ChunkCoords) int {
	for i, c := range h.remoteLoadedChunkCoords {
		if c == chunkCoords {
			return i
		}
	}
	return -1
}

func (h *Handler) log(msg string) {
	logging.Debug("Обработчик клиента %s — %s", h.address, msg)
}

func (h *Handler) logWarn(msg string) {
	logging.Warn("Обработчик клиента %s — %s", h.address, msg)
}

func (h *Handler) logError(msg string) {
	logging.Error("Обработчик клиента %s — %s", h.address, msg)
}
