package catalog

import (
	"fmt"

	"github.com/JonMunkholm/SheetImport/internal/core"
)

// Rarity grades items.
type Rarity int

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
)

var rarityNames = [...]string{"Common", "Uncommon", "Rare", "Epic", "Legendary"}

func (r Rarity) String() string {
	if r >= 0 && int(r) < len(rarityNames) {
		return rarityNames[r]
	}
	return fmt.Sprintf("Rarity(%d)", int(r))
}

// UnitClass is the combat role of a unit.
type UnitClass int8

const (
	ClassInfantry UnitClass = iota
	ClassArcher
	ClassCavalry
	ClassSiege
)

var unitClassNames = [...]string{"Infantry", "Archer", "Cavalry", "Siege"}

func (c UnitClass) String() string {
	if c >= 0 && int(c) < len(unitClassNames) {
		return unitClassNames[c]
	}
	return fmt.Sprintf("UnitClass(%d)", int(c))
}

// Item is one row of the Items page.
type Item struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     int32   `json:"price"`
	Weight    float32 `json:"weight"`
	Stackable bool    `json:"stackable"`
	Rarity    Rarity  `json:"rarity"`
}

// Unit is one row of the Units page.
type Unit struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Class  UnitClass `json:"class"`
	Health int16     `json:"health"`
	Level  int8      `json:"level"`
	Speed  float64   `json:"speed"`
}

// Settings is the single row of the Settings page.
type Settings struct {
	ID           string  `json:"id"`
	Version      int64   `json:"version"`
	StartingGold int32   `json:"startingGold"`
	DropRate     float64 `json:"dropRate"`
	Hardcore     bool    `json:"hardcore"`
}

// GameDefinitions is the content object filled by the "definitions" container.
type GameDefinitions struct {
	Items    []Item   `json:"items"`
	Units    []Unit   `json:"units"`
	Settings Settings `json:"settings"`
}

// ItemType is the import schema of Item.
var ItemType = core.NewRecordType[Item]("Item",
	core.StringField("id", func(i *Item, v string) { i.ID = v }),
	core.StringField("name", func(i *Item, v string) { i.Name = v }),
	core.Int32Field("price", func(i *Item, v int32) { i.Price = v }),
	core.Float32Field("weight", func(i *Item, v float32) { i.Weight = v }),
	core.BoolField("stackable", func(i *Item, v bool) { i.Stackable = v }),
	core.EnumField("rarity", func(i *Item, v Rarity) { i.Rarity = v },
		RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary),
)

// UnitType is the import schema of Unit.
var UnitType = core.NewRecordType[Unit]("Unit",
	core.StringField("id", func(u *Unit, v string) { u.ID = v }),
	core.StringField("name", func(u *Unit, v string) { u.Name = v }),
	core.EnumField("class", func(u *Unit, v UnitClass) { u.Class = v },
		ClassInfantry, ClassArcher, ClassCavalry, ClassSiege),
	core.Int16Field("health", func(u *Unit, v int16) { u.Health = v }),
	core.Int8Field("level", func(u *Unit, v int8) { u.Level = v }),
	core.Float64Field("speed", func(u *Unit, v float64) { u.Speed = v }),
)

// SettingsType is the import schema of Settings.
var SettingsType = core.NewRecordType[Settings]("Settings",
	core.StringField("id", func(s *Settings, v string) { s.ID = v }),
	core.Int64Field("version", func(s *Settings, v int64) { s.Version = v }),
	core.Int32Field("startingGold", func(s *Settings, v int32) { s.StartingGold = v }),
	core.Float64Field("dropRate", func(s *Settings, v float64) { s.DropRate = v }),
	core.BoolField("hardcore", func(s *Settings, v bool) { s.Hardcore = v }),
)

// Game is the registered content object. Imports write into it in place.
var Game = &GameDefinitions{}

func init() {
	registerGameDefinitions()
}

func registerGameDefinitions() {
	core.Register(core.ContainerDefinition{
		Info: core.ContainerInfo{
			Key:   "definitions",
			Group: "Game",
			Label: "Game definitions",
		},
		Content: Game,
		Targets: []core.Target{
			core.ListTarget("Items", "Items", ItemType, &Game.Items),
			core.ArrayTarget("Units", "Units", UnitType, &Game.Units),
			core.SingleTarget("Settings", "Settings", SettingsType, &Game.Settings),
		},
	})
}
