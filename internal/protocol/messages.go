// Package protocol определяет сообщения проводного протокола и их стабильную
// бинарную сериализацию. Каждое сообщение — вариант закрытого размеченного
// объединения: на проводе оно представлено 32-битным индексом варианта, за
// которым поля следуют в порядке объявления.
package protocol

import (
	"fmt"

	"github.com/annel0/gemworld/internal/coords"
	"github.com/annel0/gemworld/internal/game"
	"github.com/annel0/gemworld/internal/id"
	"github.com/annel0/gemworld/internal/world"
)

// Version версия сборки клиента и сервера. Сервер передаёт её клиенту в
// Welcome; ни сервер, ни пакет client её не сравнивают.
const Version = "0.3.0"

// Индексы вариантов сообщений клиента.
const (
	toServerHello uint32 = iota
	toServerMoveMyEntity
	toServerPlaceBomb
	toServerDetonateBombs
	toServerPurchaseSingleItem
	toServerPurchaseItemQuantity
)

// Индексы вариантов сообщений сервера.
const (
	fromServerWelcome uint32 = iota
	fromServerProvideChunk
	fromServerShouldUnloadChunk
	fromServerProvideEntity
	fromServerShouldUnloadEntity
	fromServerMoveEntity
	fromServerYourEntityMoved
	fromServerChangeTile
	fromServerBombPlaced
	fromServerBombsDetonated
	fromServerYouCollectedGems
)

// ToServer сообщение, отправляемое клиентом серверу.
type ToServer interface {
	fmt.Stringer
	isToServer()
}

// FromServer сообщение, отправляемое сервером клиенту.
type FromServer interface {
	fmt.Stringer
	isFromServer()
}

// Hello первое сообщение клиента. ClientID передаётся вернувшимся клиентом;
// новый клиент отправляет nil и получает свежий идентификатор.
type Hello struct {
	ClientID *id.Id
}

// MoveMyEntity запрос на перемещение собственной сущности клиента.
// RequestNumber строго возрастает в пределах сессии и связывает запрос с
// ответом YourEntityMoved.
type MoveMyEntity struct {
	RequestNumber uint32
	Direction     coords.Direction
}

// PlaceBomb запрос на установку бомбы на текущей позиции сущности.
type PlaceBomb struct{}

// DetonateBombs запрос на подрыв всех бомб клиента вокруг его чанка.
type DetonateBombs struct{}

// PurchasableItem предмет в сообщении покупки: либо булев, либо количественный.
type PurchasableItem struct {
	IsQuantitative   bool
	BoolItem         game.BoolItem
	QuantitativeItem game.QuantitativeItem
}

// PurchaseSingleItem запрос на покупку одной единицы предмета.
type PurchaseSingleItem struct {
	Item PurchasableItem
}

// PurchaseItemQuantity запрос на покупку нескольких единиц предмета.
type PurchaseItemQuantity struct {
	Item     game.QuantitativeItem
	Quantity uint32
}

func (Hello) isToServer()                {}
func (MoveMyEntity) isToServer()         {}
func (PlaceBomb) isToServer()            {}
func (DetonateBombs) isToServer()        {}
func (PurchaseSingleItem) isToServer()   {}
func (PurchaseItemQuantity) isToServer() {}

func (m Hello) String() string {
	if m.ClientID != nil {
		return fmt.Sprintf("hello (client id %v)", *m.ClientID)
	}
	return "hello (new client)"
}

func (m MoveMyEntity) String() string {
	return fmt.Sprintf("move my entity #%d %v", m.RequestNumber, m.Direction)
}

func (PlaceBomb) String() string     { return "place bomb" }
func (DetonateBombs) String() string { return "detonate bombs" }

func (m PurchaseSingleItem) String() string {
	if m.Item.IsQuantitative {
		return fmt.Sprintf("purchase quantitative item %d", m.Item.QuantitativeItem)
	}
	return fmt.Sprintf("purchase bool item %d", m.Item.BoolItem)
}

func (m PurchaseItemQuantity) String() string {
	return fmt.Sprintf("purchase item %d x %d", m.Item, m.Quantity)
}

// Welcome ответ сервера на Hello.
type Welcome struct {
	Version  string
	ClientID id.Id
	EntityID id.Id
	Entity   *game.Entity
}

// ProvideChunk передаёт клиенту чанк для загрузки.
type ProvideChunk struct {
	Coords coords.ChunkCoords
	Chunk  *world.Chunk
}

// ShouldUnloadChunk указывает клиенту выгрузить чанк.
type ShouldUnloadChunk struct {
	Coords coords.ChunkCoords
}

// ProvideEntity передаёт клиенту сущность, оказавшуюся в его загруженных
// чанках.
type ProvideEntity struct {
	EntityID id.Id
	Entity   *game.Entity
}

// ShouldUnloadEntity указывает клиенту выгрузить сущность.
type ShouldUnloadEntity struct {
	EntityID id.Id
}

// MoveEntity сообщает о перемещении чужой сущности.
type MoveEntity struct {
	EntityID    id.Id
	NewPosition coords.TileCoords
	Direction   coords.Direction
}

// YourEntityMoved сверка перемещения собственной сущности клиента. Отправляется
// на каждый MoveMyEntity: при отказе NewPosition равна прежней позиции.
type YourEntityMoved struct {
	RequestNumber uint32
	NewPosition   coords.TileCoords
}

// ChangeTile сообщает об изменении тайла в загруженном клиентом чанке.
type ChangeTile struct {
	Pos  coords.TileCoords
	Tile game.Tile
}

// BombPlacedMsg сообщает об установке бомбы в загруженном клиентом чанке.
type BombPlacedMsg struct {
	PlacedBy id.Id
	Pos      coords.TileCoords
}

// BombsDetonatedMsg сообщает о подрыве бомб вокруг указанного чанка.
type BombsDetonatedMsg struct {
	PlacedBy               id.Id
	InAndAroundChunkCoords coords.ChunkCoords
}

// YouCollectedGems сообщает клиенту о добытых самоцветах.
type YouCollectedGems struct {
	Gem              game.Gem
	QuantityIncrease uint32
}

func (Welcome) isFromServer()            {}
func (ProvideChunk) isFromServer()       {}
func (ShouldUnloadChunk) isFromServer()  {}
func (ProvideEntity) isFromServer()      {}
func (ShouldUnloadEntity) isFromServer() {}
func (MoveEntity) isFromServer()         {}
func (YourEntityMoved) isFromServer()    {}
func (ChangeTile) isFromServer()         {}
func (BombPlacedMsg) isFromServer()      {}
func (BombsDetonatedMsg) isFromServer()  {}
func (YouCollectedGems) isFromServer()   {}

func (m Welcome) String() string {
	return fmt.Sprintf("welcome (version %s, client id %v)", m.Version, m.ClientID)
}

func (m ProvideChunk) String() string       { return fmt.Sprintf("provide %v", m.Coords) }
func (m ShouldUnloadChunk) String() string  { return fmt.Sprintf("unload %v", m.Coords) }
func (m ProvideEntity) String() string      { return fmt.Sprintf("provide entity %v", m.EntityID) }
func (m ShouldUnloadEntity) String() string { return fmt.Sprintf("unload entity %v", m.EntityID) }

func (m MoveEntity) String() string {
	return fmt.Sprintf("entity %v moved to %v", m.EntityID, m.NewPosition)
}

func (m YourEntityMoved) String() string {
	return fmt.Sprintf("your entity moved #%d to %v", m.RequestNumber, m.NewPosition)
}

func (m ChangeTile) String() string {
	return fmt.Sprintf("change tile at %v to %d", m.Pos, m.Tile)
}

func (m BombPlacedMsg) String() string {
	return fmt.Sprintf("bomb placed by %v at %v", m.PlacedBy, m.Pos)
}

func (m BombsDetonatedMsg) String() string {
	return fmt.Sprintf("bombs detonated by %v around %v", m.PlacedBy, m.InAndAroundChunkCoords)
}

func (m YouCollectedGems) String() string {
	return fmt.Sprintf("collected %d x %v", m.QuantityIncrease, m.Gem)
}
