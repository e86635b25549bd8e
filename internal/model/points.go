package model

import "strings"

type Foot string

const (
	FootRight Foot = "right"
	FootLeft  Foot = "left"
)

type PointSlot string

const (
	SlotHeel    PointSlot = "heel"
	SlotInstep  PointSlot = "instep"
	SlotFifthMT PointSlot = "fifth_mt"
	SlotThirdMT PointSlot = "third_mt"
	SlotFirstMT PointSlot = "first_mt"
	SlotBigToe  PointSlot = "big_toe"
)

// Slots in display order, heel to toe.
var Slots = []PointSlot{SlotHeel, SlotInstep, SlotFifthMT, SlotThirdMT, SlotFirstMT, SlotBigToe}

var Feet = []Foot{FootRight, FootLeft}

// slotAliases maps raw location strings (lower-cased, space-joined with
// underscores) onto canonical slots. Device firmwares have shipped several
// spellings of the same point.
var slotAliases = map[string]PointSlot{
	"heel":     SlotHeel,
	"in_step":  SlotInstep,
	"instep":   SlotInstep,
	"5th_mt":   SlotFifthMT,
	"fifth_mt": SlotFifthMT,
	"3rd_mt":   SlotThirdMT,
	"third_mt": SlotThirdMT,
	"1st_mt":   SlotFirstMT,
	"first_mt": SlotFirstMT,
	"big_toe":  SlotBigToe,
	"bigtoe":   SlotBigToe,
}

var slotDisplay = map[PointSlot]string{
	SlotHeel:    "Heel",
	SlotInstep:  "In Step",
	SlotFifthMT: "5th MT",
	SlotThirdMT: "3rd MT",
	SlotFirstMT: "1st MT",
	SlotBigToe:  "Big Toe",
}

// FootPoint is one of the twelve canonical measurement points.
type FootPoint struct {
	Foot Foot
	Slot PointSlot
}

// DisplayName renders the canonical point string, e.g. "Right Heel".
func (p FootPoint) DisplayName() string {
	foot := "Right"
	if p.Foot == FootLeft {
		foot = "Left"
	}
	return foot + " " + slotDisplay[p.Slot]
}

// ParsePointName parses a free-text point name into a typed foot point.
// The first whitespace token selects the foot, the remainder the slot via
// the alias table. Unrecognized names return ok=false rather than an error
// so callers can skip them without failing a whole aggregation.
func ParsePointName(name string) (FootPoint, bool) {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	if len(parts) < 2 {
		return FootPoint{}, false
	}

	var foot Foot
	switch parts[0] {
	case "right":
		foot = FootRight
	case "left":
		foot = FootLeft
	default:
		return FootPoint{}, false
	}

	slot, ok := slotAliases[strings.Join(parts[1:], "_")]
	if !ok {
		return FootPoint{}, false
	}

	return FootPoint{Foot: foot, Slot: slot}, true
}

// AllPoints returns the twelve canonical points in display order,
// right foot first.
func AllPoints() []FootPoint {
	points := make([]FootPoint, 0, len(Feet)*len(Slots))
	for _, foot := range Feet {
		for _, slot := range Slots {
			points = append(points, FootPoint{Foot: foot, Slot: slot})
		}
	}
	return points
}

// AllPointNames returns the canonical display names for all twelve points.
func AllPointNames() []string {
	points := AllPoints()
	names := make([]string, len(points))
	for i, p := range points {
		names[i] = p.DisplayName()
	}
	return names
}

// ProtocolPoints resolves a session protocol identifier to its expected
// point set. Unknown or empty protocols expect no particular points.
func ProtocolPoints(protocol string) []string {
	switch protocol {
	case "full_screening":
		return AllPointNames()
	case "right_foot":
		return footPointNames(FootRight)
	case "left_foot":
		return footPointNames(FootLeft)
	default:
		return nil
	}
}

func footPointNames(foot Foot) []string {
	names := make([]string, len(Slots))
	for i, slot := range Slots {
		names[i] = FootPoint{Foot: foot, Slot: slot}.DisplayName()
	}
	return names
}
