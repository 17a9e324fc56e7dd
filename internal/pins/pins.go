// Package pins is the static registry of relay-controlling output bits on the
// switch module. Every pin is bound to one bank of one I/O expander, a single
// bit in that bank, and a set of tags used to reject unsafe combinations.
// This package has NO hardware dependencies.
package pins

import "fmt"

// Pin names one relay-controlling output bit.
type Pin string

// Bank is one 8-bit output register. Two banks live on each expander.
type Bank int

const (
	IC1GPIOA Bank = iota
	IC1GPIOB
	IC2GPIOA
	IC2GPIOB
)

// NumBanks is the number of output registers on the switch module.
const NumBanks = 4

// Banks lists every bank in write order.
var Banks = [NumBanks]Bank{IC1GPIOA, IC1GPIOB, IC2GPIOA, IC2GPIOB}

func (b Bank) String() string {
	switch b {
	case IC1GPIOA:
		return "IC1_GPIOA"
	case IC1GPIOB:
		return "IC1_GPIOB"
	case IC2GPIOA:
		return "IC2_GPIOA"
	case IC2GPIOB:
		return "IC2_GPIOB"
	}
	return fmt.Sprintf("Bank(%d)", int(b))
}

// Chip returns 0 for IC1 and 1 for IC2.
func (b Bank) Chip() int { return int(b) / 2 }

// PortB reports whether the bank is the B port of its expander.
func (b Bank) PortB() bool { return int(b)%2 == 1 }

// Tag marks a pin as a member of a wiring group.
type Tag uint8

const (
	TagPower Tag = 1 << iota
	TagPEK
	TagNoPEK
	TagAthena
	TagNotAthena
	TagPEKPlus
	TagAccessory
)

func (t Tag) String() string {
	switch t {
	case TagPower:
		return "POWER"
	case TagPEK:
		return "PEK"
	case TagNoPEK:
		return "NO_PEK"
	case TagAthena:
		return "ATHENA"
	case TagNotAthena:
		return "NOT_ATHENA"
	case TagPEKPlus:
		return "PEK_PLUS"
	case TagAccessory:
		return "ACCESSORY"
	}
	return fmt.Sprintf("Tag(%#x)", uint8(t))
}

// Pin identifiers. Names follow the switch-module schematic: S<n> is the
// relay designator, the suffix names the terminal it connects.
const (
	RHOutPhase       Pin = "RH_OUT_PHASE"
	TP1              Pin = "TP1"
	TP2              Pin = "TP2"
	TP3              Pin = "TP3"
	TP4              Pin = "TP4"
	S8GPEKNotAthena  Pin = "S8_G_PEK_NOT_ATHENA"
	S7GPEKAthena     Pin = "S7_G_PEK_ATHENA"
	S6GNoPEK         Pin = "S6_G_NO_PEK"
	S1RCPEK          Pin = "S1_RC_PEK"
	TP5              Pin = "TP5"
	S3RC             Pin = "S3_RC"
	S4RH             Pin = "S4_RH"
	TP6              Pin = "TP6"
	S21RH            Pin = "S21_RH"
	S24RHOnly        Pin = "S24_RH_ONLY"
	PEKAlt           Pin = "PEK_ALT"
	TP7              Pin = "TP7"
	S23Toggle        Pin = "S23_TOGGLE"
	S22Aqua          Pin = "S22_AQUA"
	S20ACCM          Pin = "S20_ACCM"
	S19ACCP          Pin = "S19_ACCP"
	S18OB            Pin = "S18_OB"
	S17W2G3          Pin = "S17_W2_G3"
	S16Y2G2          Pin = "S16_Y2_G2"
	S11Y1NoPEK       Pin = "S11_Y1_NO_PEK"
	S12YPEKAthena    Pin = "S12_Y_PEK_ATHENA"
	S13YPEKNotAthena Pin = "S13_Y_PEK_NOT_ATHENA"
	S14W1NoPEK       Pin = "S14_W1_NO_PEK"
	S15WPEK          Pin = "S15_W_PEK"
	TP8              Pin = "TP8"
	TP9              Pin = "TP9"
	TP10             Pin = "TP10"
)

// Info is the hardware binding of a pin.
type Info struct {
	Bank Bank
	Mask byte
	Tags Tag
}

type entry struct {
	pin  Pin
	info Info
}

// table is ordered by bank then bit. TP pins are not wired on the V2 board
// but are kept so readback can report them.
var table = []entry{
	{RHOutPhase, Info{IC1GPIOA, 1 << 0, 0}},
	{TP1, Info{IC1GPIOA, 1 << 1, 0}},
	{TP2, Info{IC1GPIOA, 1 << 2, 0}},
	{TP3, Info{IC1GPIOA, 1 << 3, 0}},
	{TP4, Info{IC1GPIOA, 1 << 4, 0}},
	{S8GPEKNotAthena, Info{IC1GPIOA, 1 << 5, TagPEK | TagNotAthena}}, // G_KT to C_TS
	{S7GPEKAthena, Info{IC1GPIOA, 1 << 6, TagPEK | TagAthena}},       // G_KT to G_TS
	{S6GNoPEK, Info{IC1GPIOA, 1 << 7, TagNoPEK}},                     // G_EQ to G_TS

	{S1RCPEK, Info{IC1GPIOB, 1 << 0, TagPEK}},
	{TP5, Info{IC1GPIOB, 1 << 1, 0}},
	{S3RC, Info{IC1GPIOB, 1 << 2, TagPower}},
	{S4RH, Info{IC1GPIOB, 1 << 3, TagNoPEK}},
	{TP6, Info{IC1GPIOB, 1 << 4, 0}},
	{S21RH, Info{IC1GPIOB, 1 << 5, TagPower}},
	{S24RHOnly, Info{IC1GPIOB, 1 << 6, TagPower}}, // thermostat powered through RH only
	{PEKAlt, Info{IC1GPIOB, 1 << 7, TagNoPEK | TagPEKPlus | TagAccessory}},

	{TP7, Info{IC2GPIOA, 1 << 0, 0}},
	{S23Toggle, Info{IC2GPIOA, 1 << 1, 0}},
	{S22Aqua, Info{IC2GPIOA, 1 << 2, 0}},
	{S20ACCM, Info{IC2GPIOA, 1 << 3, TagAccessory}}, // RH_ACC to ACCM_TS
	{S19ACCP, Info{IC2GPIOA, 1 << 4, TagAccessory}}, // ACCP_EQ to ACCP_TS
	{S18OB, Info{IC2GPIOA, 1 << 5, 0}},
	{S17W2G3, Info{IC2GPIOA, 1 << 6, 0}},
	{S16Y2G2, Info{IC2GPIOA, 1 << 7, 0}},

	{S11Y1NoPEK, Info{IC2GPIOB, 1 << 0, TagNoPEK}},
	{S12YPEKAthena, Info{IC2GPIOB, 1 << 1, TagPEK | TagAthena}},
	{S13YPEKNotAthena, Info{IC2GPIOB, 1 << 2, TagPEK | TagNotAthena}}, // Y_KT to PEK_TS
	{S14W1NoPEK, Info{IC2GPIOB, 1 << 3, TagNoPEK}},
	{S15WPEK, Info{IC2GPIOB, 1 << 4, TagPEK}},
	{TP8, Info{IC2GPIOB, 1 << 5, 0}},
	{TP9, Info{IC2GPIOB, 1 << 6, 0}},
	{TP10, Info{IC2GPIOB, 1 << 7, 0}},
}

var (
	byPin = make(map[Pin]Info, len(table))
	order = make(map[Pin]int, len(table))
)

func init() {
	for i, e := range table {
		byPin[e.pin] = e.info
		order[e.pin] = i
	}
}

// Lookup returns the hardware binding of p.
func Lookup(p Pin) (Info, bool) {
	info, ok := byPin[p]
	return info, ok
}

// Known reports whether p is a registered pin.
func (p Pin) Known() bool {
	_, ok := byPin[p]
	return ok
}

// Has reports whether p carries tag t. Unknown pins carry no tags.
func (p Pin) Has(t Tag) bool {
	return byPin[p].Tags&t != 0
}

// All returns every registered pin in bank/bit order.
func All() []Pin {
	out := make([]Pin, len(table))
	for i, e := range table {
		out[i] = e.pin
	}
	return out
}

// InBank returns the pins of bank b in bit order.
func InBank(b Bank) []Pin {
	var out []Pin
	for _, e := range table {
		if e.info.Bank == b {
			out = append(out, e.pin)
		}
	}
	return out
}

// Tagged returns every pin carrying tag t.
func Tagged(t Tag) Set {
	var out Set
	for _, e := range table {
		if e.info.Tags&t != 0 {
			out = append(out, e.pin)
		}
	}
	return out
}

// MainPower is the set of pins that route thermostat power through the
// switch module. They are energized last and removed first.
var MainPower = Tagged(TagPower)
