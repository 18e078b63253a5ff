package panel

// codec.go implements the flat CSV form of a configuration. A
// configuration serializes to one row per card; panel and tray
// structure is reconstructed on import by grouping rows on the numeric
// panel/tray identifiers.

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
	"strings"
)

// csvHeader is the fixed column order of the configuration CSV format.
var csvHeader = []string{
	"panel_number", "tray_number", "card_position",
	"card_type", "port_count", "link_speed",
}

// importedSpeedDefault is applied when a row's link_speed field is
// missing or empty.
const importedSpeedDefault = Speed100Gb

// ExportCSV serializes a configuration to CSV, one row per card, in
// stored panel, tray, card order. The card position column is the
// letter label derived from the card's index within its tray.
func ExportCSV(cfg Configuration) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write(csvHeader)
	for _, unit := range cfg.Panels {
		for _, tray := range unit.Trays {
			for i, card := range tray.Cards {
				w.Write([]string{
					strconv.Itoa(unit.Number),
					strconv.Itoa(tray.Number),
					PositionLetter(i),
					string(card.Type),
					strconv.Itoa(card.Ports),
					string(card.LinkSpeed),
				})
			}
		}
	}
	w.Flush()

	return buf.String()
}

// ImportResult carries the reconstructed configuration and how many
// malformed lines the best-effort decoder dropped.
type ImportResult struct {
	Configuration Configuration
	SkippedLines  int
}

// ImportCSV parses configuration CSV content into a fresh user
// configuration named name. Decoding is best effort: lines with the
// wrong field count or non-numeric panel/tray numbers are skipped and
// counted, never reported per line.
//
// Rows sharing a panel_number/tray_number merge into one unit/tray.
// Card letters convert back to slot indices; indices never populated
// are compacted out rather than preserved as holes, so card order
// follows compaction order when input letters were non-contiguous.
// Panels and trays come back sorted ascending by number.
func ImportCSV(text, name string) ImportResult {
	res := ImportResult{
		Configuration: Configuration{
			ID:   NewConfigurationID(),
			Name: name,
		},
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) <= 1 {
		return res
	}

	type trayAcc struct {
		number int
		cards  []*Card // indexed by slot, nil = unpopulated
	}
	type unitAcc struct {
		number int
		trays  map[int]*trayAcc
	}

	units := make(map[int]*unitAcc)

	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		// A line may omit the trailing link_speed field entirely; that
		// reads the same as leaving it empty. Any other field count is
		// malformed.
		fields := strings.Split(line, ",")
		if len(fields) < 5 || len(fields) > 6 {
			res.SkippedLines++
			continue
		}

		unitNum, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			res.SkippedLines++
			continue
		}
		trayNum, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			res.SkippedLines++
			continue
		}

		position := strings.TrimSpace(fields[2])
		slot := PositionIndex(position)
		if slot < 0 {
			res.SkippedLines++
			continue
		}

		// Non-numeric port counts end up as 0; the original left this
		// undefined downstream.
		ports, _ := strconv.Atoi(strings.TrimSpace(fields[4]))

		speed := importedSpeedDefault
		if len(fields) == 6 {
			if s := LinkSpeed(strings.TrimSpace(fields[5])); s != "" {
				speed = s
			}
		}

		unit, ok := units[unitNum]
		if !ok {
			unit = &unitAcc{number: unitNum, trays: make(map[int]*trayAcc)}
			units[unitNum] = unit
		}
		tray, ok := unit.trays[trayNum]
		if !ok {
			tray = &trayAcc{number: trayNum}
			unit.trays[trayNum] = tray
		}

		for len(tray.cards) <= slot {
			tray.cards = append(tray.cards, nil)
		}
		tray.cards[slot] = &Card{
			ID:        "card-" + position,
			Type:      CardType(strings.TrimSpace(fields[3])),
			Ports:     ports,
			LinkSpeed: speed,
		}
	}

	for _, unit := range units {
		u := Unit{ID: unitID(unit.number), Number: unit.number}
		for _, tray := range unit.trays {
			t := Tray{ID: trayID(tray.number), Number: tray.number}
			for _, card := range tray.cards {
				if card != nil {
					t.Cards = append(t.Cards, *card)
				}
			}
			u.Trays = append(u.Trays, t)
		}
		sort.Slice(u.Trays, func(i, j int) bool { return u.Trays[i].Number < u.Trays[j].Number })
		res.Configuration.Panels = append(res.Configuration.Panels, u)
	}
	sort.Slice(res.Configuration.Panels, func(i, j int) bool {
		return res.Configuration.Panels[i].Number < res.Configuration.Panels[j].Number
	})

	return res
}

// ExportFileName derives a download file name from a configuration
// name, replacing anything outside [A-Za-z0-9] with underscores.
func ExportFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String() + ".csv"
}
