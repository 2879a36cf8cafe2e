package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/game"
	"github.com/annel0/gemworld/internal/id"
	"github.com/annel0/gemworld/internal/world"
)

// ErrTruncated возвращается при попытке декодировать обрезанное сообщение.
var ErrTruncated = errors.New("сообщение обрезано")

// writer последовательно кодирует поля сообщения. Все целые числа little-endian.
type writer struct {
	data []byte
}

func (w *writer) u8(v uint8)   { w.data = append(w.data, v) }
func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) u32(v uint32) {
	w.data = binary.LittleEndian.AppendUint32(w.data, v)
}

func (w *writer) i32(v int32) { w.u32(uint32(v)) }

func (w *writer) u64(v uint64) {
	w.data = binary.LittleEndian.AppendUint64(w.data, v)
}

func (w *writer) str(s string) {
	w.u64(uint64(len(s)))
	w.data = append(w.data, s...)
}

func (w *writer) id(v id.Id) {
	w.data = append(w.data, v[:]...)
}

func (w *writer) tileCoords(c coords.TileCoords) {
	w.i32(c.X)
	w.i32(c.Y)
}

func (w *writer) chunkCoords(c coords.ChunkCoords) {
	w.i32(c.X)
	w.i32(c.Y)
}

// reader последовательно декодирует поля сообщения. Первая же ошибка
// запоминается, последующие чтения возвращают нулевые значения.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.data) {
		r.fail(ErrTruncated)
		return nil
	}
	chunk := r.data[r.off : r.off+n]
	r.off += n
	return chunk
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) boolean() bool {
	switch r.u8() {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail(errors.New("некорректное булево значение"))
		return false
	}
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) i32() int32 { return int32(r.u32()) }

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) str() string {
	length := r.u64()
	if length > uint64(len(r.data)) {
		r.fail(ErrTruncated)
		return ""
	}
	return string(r.take(int(length)))
}

func (r *reader) id() id.Id {
	var result id.Id
	copy(result[:], r.take(len(result)))
	return result
}

func (r *reader) tileCoords() coords.TileCoords {
	return coords.TileCoords{X: r.i32(), Y: r.i32()}
}

func (r *reader) chunkCoords() coords.ChunkCoords {
	return coords.ChunkCoords{X: r.i32(), Y: r.i32()}
}

func (r *reader) remaining() int { return len(r.data) - r.off }

// direction декодирует направление, проверяя диапазон дискриминанта.
func (r *reader) direction() coords.Direction {
	value := r.u32()
	if value > uint32(coords.DirectionRight) {
		r.fail(fmt.Errorf("некорректное направление: %d", value))
	}
	return coords.Direction(value)
}

// entity кодирует сущность: позиция, перечисления в стабильной 32-битной
// форме, затем коллекция самоцветов и инвентарь.
func (w *writer) entity(e *game.Entity) {
	w.tileCoords(e.Pos)
	w.u32(uint32(e.Direction))
	w.u32(uint32(e.FacialExpression))
	w.u32(uint32(e.HairStyle))
	w.u32(uint32(e.ClothingColour))
	w.u32(uint32(e.SkinColour))
	w.u32(uint32(e.HairColour))
	w.boolean(e.HasRunningShoes)

	// Записи отображений сортируются по ключу: сериализация обязана быть
	// стабильной
	gems := make([]game.Gem, 0, len(e.GemCollection.Quantities))
	for gem := range e.GemCollection.Quantities {
		gems = append(gems, gem)
	}
	sort.Slice(gems, func(i, j int) bool { return gems[i] < gems[j] })

	w.u64(uint64(len(gems)))
	for _, gem := range gems {
		w.u32(uint32(gem))
		w.u32(e.GemCollection.Quantities[gem])
	}

	boolItems := make([]game.BoolItem, 0, len(e.ItemInventory.BoolItems))
	for item := range e.ItemInventory.BoolItems {
		boolItems = append(boolItems, item)
	}
	sort.Slice(boolItems, func(i, j int) bool { return boolItems[i] < boolItems[j] })

	w.u64(uint64(len(boolItems)))
	for _, item := range boolItems {
		w.u32(uint32(item))
		w.boolean(e.ItemInventory.BoolItems[item])
	}

	quantItems := make([]game.QuantitativeItem, 0, len(e.ItemInventory.QuantitativeItems))
	for item := range e.ItemInventory.QuantitativeItems {
		quantItems = append(quantItems, item)
	}
	sort.Slice(quantItems, func(i, j int) bool { return quantItems[i] < quantItems[j] })

	w.u64(uint64(len(quantItems)))
	for _, item := range quantItems {
		w.u32(uint32(item))
		w.u32(e.ItemInventory.QuantitativeItems[item])
	}
}

func (r *reader) entity() *game.Entity {
	entity := game.NewEntity(r.tileCoords())
	entity.Direction = r.direction()
	entity.FacialExpression = game.FacialExpression(r.u32())
	entity.HairStyle = game.HairStyle(r.u32())
	entity.ClothingColour = game.ClothingColour(r.u32())
	entity.SkinColour = game.SkinColour(r.u32())
	entity.HairColour = game.HairColour(r.u32())
	entity.HasRunningShoes = r.boolean()

	gemCount := r.u64()
	for i := uint64(0); i < gemCount && r.err == nil; i++ {
		gem := game.Gem(r.u32())
		entity.GemCollection.Quantities[gem] = r.u32()
	}

	boolCount := r.u64()
	for i := uint64(0); i < boolCount && r.err == nil; i++ {
		item := game.BoolItem(r.u32())
		entity.ItemInventory.BoolItems[item] = r.boolean()
	}

	quantCount := r.u64()
	for i := uint64(0); i < quantCount && r.err == nil; i++ {
		item := game.QuantitativeItem(r.u32())
		entity.ItemInventory.QuantitativeItems[item] = r.u32()
	}

	return entity
}

func (w *writer) chunk(c *world.Chunk) {
	w.data = append(w.data, c.Serialize()...)
}

func (r *reader) chunk() *world.Chunk {
	data := r.take(coords.ChunkTileCount)
	if data == nil {
		return nil
	}
	chunk, err := world.DeserializeChunk(data)
	if err != nil {
		r.fail(err)
		return nil
	}
	return chunk
}

// MarshalToServer кодирует сообщение клиента в бинарный вид.
func MarshalToServer(msg ToServer) []byte {
	w := &writer{}

	switch m := msg.(type) {
	case Hello:
		w.u32(toServerHello)
		if m.ClientID != nil {
			w.u8(1)
			w.id(*m.ClientID)
		} else {
			w.u8(0)
		}

	case MoveMyEntity:
		w.u32(toServerMoveMyEntity)
		w.u32(m.RequestNumber)
		w.u32(uint32(m.Direction))

	case PlaceBomb:
		w.u32(toServerPlaceBomb)

	case DetonateBombs:
		w.u32(toServerDetonateBombs)

	case PurchaseSingleItem:
		w.u32(toServerPurchaseSingleItem)
		w.boolean(m.Item.IsQuantitative)
		if m.Item.IsQuantitative {
			w.u32(uint32(m.Item.QuantitativeItem))
		} else {
			w.u32(uint32(m.Item.BoolItem))
		}

	case PurchaseItemQuantity:
		w.u32(toServerPurchaseItemQuantity)
		w.u32(uint32(m.Item))
		w.u32(m.Quantity)
	}

	return w.data
}

// UnmarshalToServer декодирует сообщение клиента.
func UnmarshalToServer(data []byte) (ToServer, error) {
	r := &reader{data: data}

	var msg ToServer
	switch variant := r.u32(); variant {
	case toServerHello:
		hello := Hello{}
		if r.u8() == 1 {
			clientID := r.id()
			hello.ClientID = &clientID
		}
		msg = hello

	case toServerMoveMyEntity:
		msg = MoveMyEntity{RequestNumber: r.u32(), Direction: r.direction()}

	case toServerPlaceBomb:
		msg = PlaceBomb{}

	case toServerDetonateBombs:
		msg = DetonateBombs{}

	case toServerPurchaseSingleItem:
		item := PurchasableItem{IsQuantitative: r.boolean()}
		if item.IsQuantitative {
			item.QuantitativeItem = game.QuantitativeItem(r.u32())
		} else {
			item.BoolItem = game.BoolItem(r.u32())
		}
		msg = PurchaseSingleItem{Item: item}

	case toServerPurchaseItemQuantity:
		msg = PurchaseItemQuantity{Item: game.QuantitativeItem(r.u32()), Quantity: r.u32()}

	default:
		return nil, fmt.Errorf("неизвестный вариант сообщения клиента: %d", variant)
	}

	if r.err != nil {
		return nil, r.err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("лишние %d байт после сообщения", r.remaining())
	}
	return msg, nil
}

// MarshalFromServer кодирует сообщение сервера в бинарный вид.
func MarshalFromServer(msg FromServer) []byte {
	w := &writer{}

	switch m := msg.(type) {
	case Welcome:
		w.u32(fromServerWelcome)
		w.str(m.Version)
		w.id(m.ClientID)
		w.id(m.EntityID)
		w.entity(m.Entity)

	case ProvideChunk:
		w.u32(fromServerProvideChunk)
		w.chunkCoords(m.Coords)
		w.chunk(m.Chunk)

	case ShouldUnloadChunk:
		w.u32(fromServerShouldUnloadChunk)
		w.chunkCoords(m.Coords)

	case ProvideEntity:
		w.u32(fromServerProvideEntity)
		w.id(m.EntityID)
		w.entity(m.Entity)

	case ShouldUnloadEntity:
		w.u32(fromServerShouldUnloadEntity)
		w.id(m.EntityID)

	case MoveEntity:
		w.u32(fromServerMoveEntity)
		w.id(m.EntityID)
		w.tileCoords(m.NewPosition)
		w.u32(uint32(m.Direction))

	case YourEntityMoved:
		w.u32(fromServerYourEntityMoved)
		w.u32(m.RequestNumber)
		w.tileCoords(m.NewPosition)

	case ChangeTile:
		w.u32(fromServerChangeTile)
		w.tileCoords(m.Pos)
		w.u8(uint8(m.Tile))

	case BombPlacedMsg:
		w.u32(fromServerBombPlaced)
		w.id(m.PlacedBy)
		w.tileCoords(m.Pos)

	case BombsDetonatedMsg:
		w.u32(fromServerBombsDetonated)
		w.id(m.PlacedBy)
		w.chunkCoords(m.InAndAroundChunkCoords)

	case YouCollectedGems:
		w.u32(fromServerYouCollectedGems)
		w.u32(uint32(m.Gem))
		w.u32(m.QuantityIncrease)
	}

	return w.data
}

// UnmarshalFromServer декодирует сообщение сервера.
func UnmarshalFromServer(data []byte) (FromServer, error) {
	r := &reader{data: data}

	var msg FromServer
	switch variant := r.u32(); variant {
	case fromServerWelcome:
		msg = Welcome{Version: r.str(), ClientID: r.id(), EntityID: r.id(), Entity: r.entity()}

	case fromServerProvideChunk:
		msg = ProvideChunk{Coords: r.chunkCoords(), Chunk: r.chunk()}

	case fromServerShouldUnloadChunk:
		msg = ShouldUnloadChunk{Coords: r.chunkCoords()}

	case fromServerProvideEntity:
		msg = ProvideEntity{EntityID: r.id(), Entity: r.entity()}

	case fromServerShouldUnloadEntity:
		msg = ShouldUnloadEntity{EntityID: r.id()}

	case fromServerMoveEntity:
		msg = MoveEntity{EntityID: r.id(), NewPosition: r.tileCoords(), Direction: r.direction()}

	case fromServerYourEntityMoved:
		msg = YourEntityMoved{RequestNumber: r.u32(), NewPosition: r.tileCoords()}

	case fromServerChangeTile:
		change := ChangeTile{Pos: r.tileCoords(), Tile: game.Tile(r.u8())}
		if !change.Tile.IsValid() {
			r.fail(fmt.Errorf("некорректный тайл: %d", change.Tile))
		}
		msg = change

	case fromServerBombPlaced:
		msg = BombPlacedMsg{PlacedBy: r.id(), Pos: r.tileCoords()}

	case fromServerBombsDetonated:
		msg = BombsDetonatedMsg{PlacedBy: r.id(), InAndAroundChunkCoords: r.chunkCoords()}

	case fromServerYouCollectedGems:
		msg = YouCollectedGems{Gem: game.Gem(r.u32()), QuantityIncrease: r.u32()}

	default:
		return nil, fmt.Errorf("неизвестный вариант сообщения сервера: %d", variant)
	}

	if r.err != nil {
		return nil, r.err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("лишние %d байт после сообщения", r.remaining())
	}
	return msg, nil
}
