package game

// BoolItem представляет предмет, которым сущность либо владеет, либо нет.
type BoolItem uint32

const (
	BoolItemRunningShoes BoolItem = iota
)

// GetPrice возвращает тип и количество самоцветов, необходимых для покупки.
func (b BoolItem) GetPrice() (Gem, uint32) {
	switch b {
	case BoolItemRunningShoes:
		return GemEmerald, 20
	default:
		return GemEmerald, 0
	}
}

// QuantitativeItem представляет предмет, которым можно владеть в количестве.
type QuantitativeItem uint32

const (
	QuantitativeItemBomb QuantitativeItem = iota
)

// GetPrice возвращает цену одной единицы предмета.
func (q QuantitativeItem) GetPrice() (Gem, uint32) {
	switch q {
	case QuantitativeItemBomb:
		return GemRuby, 5
	default:
		return GemRuby, 0
	}
}

// Inventory хранит предметы сущности.
type Inventory struct {
	BoolItems         map[BoolItem]bool
	QuantitativeItems map[QuantitativeItem]uint32
}

// NewInventory создаёт пустой инвентарь.
func NewInventory() Inventory {
	return Inventory{
		BoolItems:         make(map[BoolItem]bool),
		QuantitativeItems: make(map[QuantitativeItem]uint32),
	}
}

// Has сообщает, владеет ли сущность указанным предметом.
func (inv *Inventory) Has(item BoolItem) bool {
	return inv.BoolItems[item]
}

// Give выдаёт сущности указанный предмет.
func (inv *Inventory) Give(item BoolItem) {
	if inv.BoolItems == nil {
		inv.BoolItems = make(map[BoolItem]bool)
	}
	inv.BoolItems[item] = true
}

// HasHowMany возвращает количество единиц указанного предмета.
func (inv *Inventory) HasHowMany(item QuantitativeItem) uint32 {
	return inv.QuantitativeItems[item]
}

// GiveQuantity выдаёт указанное количество предмета.
func (inv *Inventory) GiveQuantity(item QuantitativeItem, quantity uint32) {
	if inv.QuantitativeItems == nil {
		inv.QuantitativeItems = make(map[QuantitativeItem]uint32)
	}
	inv.QuantitativeItems[item] += quantity
}

// TakeQuantity забирает указанное количество предмета, не опускаясь ниже нуля.
func (inv *Inventory) TakeQuantity(item QuantitativeItem, quantity uint32) {
	if inv.QuantitativeItems == nil {
		return
	}
	if current := inv.QuantitativeItems[item]; current <= quantity {
		delete(inv.QuantitativeItems, item)
	} else {
		inv.QuantitativeItems[item] = current - quantity
	}
}

// Clone возвращает глубокую копию инвентаря.
func (inv *Inventory) Clone() Inventory {
	clone := NewInventory()
	for item, owned := range inv.BoolItems {
		clone.BoolItems[item] = owned
	}
	for item, quantity := range inv.QuantitativeItems {
		clone.QuantitativeItems[item] = quantity
	}
	return clone
}
