package catalog

import "github.com/JonMunkholm/SheetImport/internal/core"

// Phrase is one translated string.
type Phrase struct {
	ID      string `json:"id"`
	English string `json:"en"`
	German  string `json:"de"`
	French  string `json:"fr"`
}

// LocalizationTable is the content object of the "localization" container.
type LocalizationTable struct {
	UI       []Phrase `json:"ui"`
	Dialogue []Phrase `json:"dialogue"`
}

var PhraseType = core.NewRecordType[Phrase]("Phrase",
	core.StringField("id", func(p *Phrase, v string) { p.ID = v }),
	core.StringField("en", func(p *Phrase, v string) { p.English = v }),
	core.StringField("de", func(p *Phrase, v string) { p.German = v }),
	core.StringField("fr", func(p *Phrase, v string) { p.French = v }),
)

var Localization = &LocalizationTable{}

func init() {
	core.Register(core.ContainerDefinition{
		Info: core.ContainerInfo{
			Key:   "localization",
			Group: "Text",
			Label: "Localization",
		},
		Content: Localization,
		Targets: []core.Target{
			core.ListTarget("UI", "UI", PhraseType, &Localization.UI),
			core.ListTarget("Dialogue", "Dialogue", PhraseType, &Localization.Dialogue),
		},
	})
}
