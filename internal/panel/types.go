// Package panel provides the patch-panel planning domain: the cable
// link and configuration model, the default/user configuration store,
// and the configuration CSV codec. This package has no HTTP
// dependencies and can be driven by any frontend.
package panel

import (
	"strconv"

	"github.com/google/uuid"
)

// CardType identifies the optical card installed in a tray slot.
type CardType string

const (
	CardPSM4  CardType = "PSM4"
	CardLCLC  CardType = "LCLC"
	CardType1 CardType = "Type1"
	CardType2 CardType = "Type2"
)

// LinkSpeed is the line rate a card's ports run at.
type LinkSpeed string

const (
	Speed1Gb   LinkSpeed = "1Gb"
	Speed10Gb  LinkSpeed = "10Gb"
	Speed25Gb  LinkSpeed = "25Gb"
	Speed40Gb  LinkSpeed = "40Gb"
	Speed100Gb LinkSpeed = "100Gb"
)

// CardTypes lists every card type the editor offers.
var CardTypes = []string{string(CardPSM4), string(CardLCLC), string(CardType1), string(CardType2)}

// LinkSpeeds lists every link speed the model accepts. Individual call
// sites may enforce a subset.
var LinkSpeeds = []string{
	string(Speed1Gb), string(Speed10Gb), string(Speed25Gb),
	string(Speed40Gb), string(Speed100Gb),
}

// Editor-enforced bounds. The model types themselves do not enforce
// these; SaveUserConfiguration's callers do.
const (
	MaxUnits        = 4
	MaxTraysPerUnit = 12
	MinPorts        = 1
	MaxPorts        = 24
	MaxNameLength   = 50
)

// CableLink is one row of an uploaded cable-link spreadsheet. Records
// are immutable once created.
type CableLink struct {
	ID           string `json:"id"`
	StartRack    string `json:"startRack"`
	StartUHeight int    `json:"startUHeight"`
	StartPort    string `json:"startPort"`
	EndRack      string `json:"endRack"`
	EndUHeight   int    `json:"endUHeight"`
	EndPort      string `json:"endPort"`
}

// Card is a single optical card. Its slot position within a tray is
// the index in the tray's Cards slice, not a stored field; consumers
// derive the A/B/C/D label from the index.
type Card struct {
	ID        string    `json:"id"`
	Type      CardType  `json:"type"`
	Ports     int       `json:"ports"`
	LinkSpeed LinkSpeed `json:"linkSpeed"`
}

// Tray holds an ordered set of cards inside a panel unit.
type Tray struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Cards  []Card `json:"cards"`
}

// Unit is one physical patch-panel unit holding trays.
type Unit struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Trays  []Tray `json:"trays"`
}

// Configuration is a complete panel layout. ID is the identity key
// across the default and user stores: a user configuration with the
// same id as a default shadows it entirely in the merged view.
type Configuration struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault,omitempty"`
	Panels    []Unit `json:"panels"`
}

// NewConfigurationID returns a fresh user-configuration id. The id is
// collision-resistant; position in time carries no meaning.
func NewConfigurationID() string {
	return "custom-" + uuid.NewString()
}

// PositionLetter maps a card's zero-based slot index to its letter
// label (0 is A, 1 is B, ...).
func PositionLetter(index int) string {
	return string(rune('A' + index))
}

// PositionIndex maps a letter label back to a zero-based slot index.
// Returns -1 for an empty label.
func PositionIndex(letter string) int {
	if letter == "" {
		return -1
	}
	return int([]rune(letter)[0] - 'A')
}

// DefaultTray returns the standard tray preset used when authoring a
// new configuration: three PSM4 breakout cards and one LCLC card.
func DefaultTray(number int) Tray {
	return Tray{
		ID:     trayID(number),
		Number: number,
		Cards: []Card{
			{ID: "card-A", Type: CardPSM4, Ports: 4, LinkSpeed: Speed100Gb},
			{ID: "card-B", Type: CardPSM4, Ports: 4, LinkSpeed: Speed100Gb},
			{ID: "card-C", Type: CardPSM4, Ports: 4, LinkSpeed: Speed100Gb},
			{ID: "card-D", Type: CardLCLC, Ports: 6, LinkSpeed: Speed40Gb},
		},
	}
}

// NewConfiguration returns a blank single-unit configuration with the
// default tray, ready for editing.
func NewConfiguration(name string) Configuration {
	return Configuration{
		ID:   NewConfigurationID(),
		Name: name,
		Panels: []Unit{
			{ID: unitID(1), Number: 1, Trays: []Tray{DefaultTray(1)}},
		},
	}
}

// Clone returns a deep copy of the configuration. Store accessors hand
// out clones so callers cannot mutate shared state.
func (c Configuration) Clone() Configuration {
	out := c
	out.Panels = make([]Unit, len(c.Panels))
	for i, u := range c.Panels {
		cu := u
		cu.Trays = make([]Tray, len(u.Trays))
		for j, tr := range u.Trays {
			ct := tr
			ct.Cards = append([]Card(nil), tr.Cards...)
			cu.Trays[j] = ct
		}
		out.Panels[i] = cu
	}
	return out
}

// CardCount returns the total number of cards across all units.
func (c Configuration) CardCount() int {
	n := 0
	for _, u := range c.Panels {
		for _, tr := range u.Trays {
			n += len(tr.Cards)
		}
	}
	return n
}

func unitID(number int) string { return "panel-" + strconv.Itoa(number) }
func trayID(number int) string { return "tray-" + strconv.Itoa(number) }
