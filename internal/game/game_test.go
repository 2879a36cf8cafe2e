package game

import (
	"math"
	"testing"

	"github.com/annel0/gemworld/internal/coords"
)

func TestTileRules(t *testing.T) {
	// Вода и все её переходные тайлы блокируют движение
	if !TileWater.IsBlocking() || !TileWaterGrassCornerTopLeft.IsBlocking() {
		t.Error("Водные тайлы должны блокировать движение")
	}

	// Самоцветные скалы разбиваются и превращаются в землю
	for _, rock := range []Tile{TileRockEmerald, TileRockRuby, TileRockDiamond} {
		if !rock.IsSmashable() {
			t.Errorf("Тайл %d должен разбиваться", rock)
		}
		if rock.SmashedInto() != TileDirt {
			t.Errorf("Тайл %d должен превращаться в землю", rock)
		}
		if rock.IsBlocking() {
			t.Errorf("Разбиваемый тайл %d не должен считаться блокирующим", rock)
		}
	}

	// Обычная скала не разбивается и преграждает путь
	if TileRock.IsSmashable() || !TileRock.IsBlocking() {
		t.Error("Обычная скала должна блокировать движение и не разбиваться")
	}
	if TileRock.GetGemYield() != nil {
		t.Error("Обычная скала не должна приносить самоцветы")
	}

	yieldData := []struct {
		tile Tile
		gem  Gem
	}{
		{TileRockEmerald, GemEmerald},
		{TileRockRuby, GemRuby},
		{TileRockDiamond, GemDiamond},
	}
	for _, data := range yieldData {
		y := data.tile.GetGemYield()
		if y == nil {
			t.Fatalf("Тайл %d должен приносить самоцветы", data.tile)
		}
		if y.Gem != data.gem {
			t.Errorf("Тайл %d: ожидался %v, получен %v", data.tile, data.gem, y.Gem)
		}
		if y.MinimumQuantity < 1 || y.MinimumQuantity > y.MaximumQuantity {
			t.Errorf("Тайл %d: некорректный диапазон дропа [%d, %d]", data.tile, y.MinimumQuantity, y.MaximumQuantity)
		}
	}

	// Травяные тайлы
	if !TileGrass.IsGrassy() || !TileShrub.IsGrassy() {
		t.Error("Трава и кустарник должны быть травяными")
	}
	if TileDirt.IsGrassy() || TileStones.IsGrassy() {
		t.Error("Земля и камни не должны быть травяными")
	}
}

func TestMovementTime(t *testing.T) {
	entity := NewEntity(coords.TileCoords{})

	assertTime := func(tile Tile, expected float64) {
		t.Helper()
		if got := entity.MovementTime(tile); math.Abs(got-expected) > 1e-9 {
			t.Errorf("Тайл %d: ожидалось время %f, получено %f", tile, expected, got)
		}
	}

	assertTime(TileDirt, StandardMovementTime)
	assertTime(TileGrass, StandardMovementTime*GrassyTileMovementTimeModifier)
	assertTime(TileRockRuby, StandardMovementTime*SmashableTileMovementTimeModifier)

	entity.HasRunningShoes = true
	assertTime(TileDirt, RunningMovementTime)
	assertTime(TileGrass, RunningMovementTime*GrassyTileMovementTimeModifier)
}

func TestGemCollection(t *testing.T) {
	collection := NewGemCollection()

	if collection.GetQuantity(GemRuby) != 0 {
		t.Error("Новая коллекция должна быть пустой")
	}

	collection.IncreaseQuantity(GemRuby, 7)
	collection.DecreaseQuantity(GemRuby, 3)
	if collection.GetQuantity(GemRuby) != 4 {
		t.Errorf("Ожидалось 4 рубина, получено %d", collection.GetQuantity(GemRuby))
	}

	// Списание большего количества обнуляет, а не уводит в минус
	collection.DecreaseQuantity(GemRuby, 100)
	if collection.GetQuantity(GemRuby) != 0 {
		t.Errorf("Ожидалось 0 рубинов, получено %d", collection.GetQuantity(GemRuby))
	}
}

func TestInventory(t *testing.T) {
	inventory := NewInventory()

	if inventory.Has(BoolItemRunningShoes) {
		t.Error("Новый инвентарь должен быть пустым")
	}

	inventory.Give(BoolItemRunningShoes)
	if !inventory.Has(BoolItemRunningShoes) {
		t.Error("Предмет не был выдан")
	}

	inventory.GiveQuantity(QuantitativeItemBomb, 3)
	inventory.TakeQuantity(QuantitativeItemBomb, 1)
	if inventory.HasHowMany(QuantitativeItemBomb) != 2 {
		t.Errorf("Ожидалось 2 бомбы, получено %d", inventory.HasHowMany(QuantitativeItemBomb))
	}
}

func TestEntityCloneIsDeep(t *testing.T) {
	entity := NewEntity(coords.TileCoords{X: 1, Y: 2})
	entity.GemCollection.IncreaseQuantity(GemEmerald, 5)
	entity.ItemInventory.GiveQuantity(QuantitativeItemBomb, 1)

	clone := entity.Clone()
	clone.GemCollection.IncreaseQuantity(GemEmerald, 10)
	clone.ItemInventory.TakeQuantity(QuantitativeItemBomb, 1)

	if entity.GemCollection.GetQuantity(GemEmerald) != 5 {
		t.Error("Изменение клона затронуло коллекцию оригинала")
	}
	if entity.ItemInventory.HasHowMany(QuantitativeItemBomb) != 1 {
		t.Error("Изменение клона затронуло инвентарь оригинала")
	}
}
