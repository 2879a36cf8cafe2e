package game

import (
	"fmt"

	"github.com/annel0/gemworld/internal/coords"
)

// Время перемещения на соседний тайл в секундах.
const (
	StandardMovementTime = 0.13
	RunningMovementTime  = StandardMovementTime * 0.75

	SmashableTileMovementTimeModifier = 2.5
	GrassyTileMovementTimeModifier    = 0.8
)

// FacialExpression выражение лица сущности.
type FacialExpression uint32

const (
	FacialExpressionNeutral FacialExpression = iota
	FacialExpressionAngry
	FacialExpressionShocked
	FacialExpressionSkeptical
)

// HairStyle причёска сущности.
type HairStyle uint32

const (
	HairStyleQuiff HairStyle = iota
	HairStyleMohawk
	HairStyleFringe
)

// ClothingColour цвет одежды сущности.
type ClothingColour uint32

const (
	ClothingColourWhite ClothingColour = iota
	ClothingColourGrey
	ClothingColourRed
	ClothingColourGreen
	ClothingColourBlue
)

// SkinColour цвет кожи сущности.
type SkinColour uint32

const (
	SkinColourBlack SkinColour = iota
	SkinColourBrown
	SkinColourPale
	SkinColourWhite
)

// HairColour цвет волос сущности.
type HairColour uint32

const (
	HairColourBlack HairColour = iota
	HairColourBrown
	HairColourBlonde
	HairColourWhite
	HairColourRed
	HairColourGreen
	HairColourBlue
)

// Entity представляет персонажа, управляемого одним клиентом. Других типов
// сущностей в игровом мире нет.
type Entity struct {
	Pos              coords.TileCoords
	Direction        coords.Direction
	FacialExpression FacialExpression
	HairStyle        HairStyle
	ClothingColour   ClothingColour
	SkinColour       SkinColour
	HairColour       HairColour
	HasRunningShoes  bool
	GemCollection    GemCollection
	ItemInventory    Inventory
}

// NewEntity создаёт сущность с настройками по умолчанию в указанной позиции.
func NewEntity(pos coords.TileCoords) *Entity {
	return &Entity{
		Pos:              pos,
		Direction:        coords.DirectionDown,
		FacialExpression: FacialExpressionNeutral,
		HairStyle:        HairStyleQuiff,
		ClothingColour:   ClothingColourRed,
		SkinColour:       SkinColourPale,
		HairColour:       HairColourBlack,
		GemCollection:    NewGemCollection(),
		ItemInventory:    NewInventory(),
	}
}

// MovementTime возвращает время в секундах, необходимое сущности для перехода
// на тайл указанного типа.
func (e *Entity) MovementTime(tileAtDestination Tile) float64 {
	baseTime := StandardMovementTime
	if e.HasRunningShoes {
		baseTime = RunningMovementTime
	}

	switch {
	case tileAtDestination.IsSmashable():
		return baseTime * SmashableTileMovementTimeModifier
	case tileAtDestination.IsGrassy():
		return baseTime * GrassyTileMovementTimeModifier
	default:
		return baseTime
	}
}

// Clone возвращает глубокую копию сущности. Используется при передаче сущности
// за пределы мьютекса мира.
func (e *Entity) Clone() *Entity {
	clone := *e
	clone.GemCollection = e.GemCollection.Clone()
	clone.ItemInventory = e.ItemInventory.Clone()
	return &clone
}

func (e *Entity) String() string {
	return fmt.Sprintf("entity at %v facing %v with gems %v", e.Pos, e.Direction, e.GemCollection)
}
