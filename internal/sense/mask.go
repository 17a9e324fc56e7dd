package sense

import (
	"fmt"
	"strconv"
	"strings"
)

// Mask is a 16-bit snapshot of the sense inputs. Port A is the low byte and
// port B the high byte; a set bit means the wire is active.
type Mask uint16

// Input wires.
const (
	InNone   Mask = 0
	InTP64   Mask = 1 << 0
	InTP63   Mask = 1 << 1
	InTP62   Mask = 1 << 2
	InPEKAlt Mask = 1 << 3
	InEXT4   Mask = 1 << 4
	InEXT3   Mask = 1 << 5
	InEXT2   Mask = 1 << 6
	InEXT1   Mask = 1 << 7
	InG      Mask = 1 << 8
	InY1     Mask = 1 << 9
	InW1     Mask = 1 << 10
	InY2     Mask = 1 << 11
	InW2     Mask = 1 << 12
	InOB     Mask = 1 << 13
	InACC    Mask = 1 << 14
	InPEK    Mask = 1 << 15

	// Shared terminals.
	InG2         = InY2     // medium fan speed on Y2
	InG3         = InW2     // high fan speed on W2
	InOBArtemis  = InW2     // artemis shares W2 and O/B
	InG3Artemis  = InPEKAlt // artemis G3 on the PEK+ terminal
	InACCArtemis = InPEKAlt // artemis ACC+ on the PEK+ terminal

	// Enabled covers the terminals wired on the V2 board.
	Enabled = InPEK | InACC | InOB | InW2 | InY2 | InW1 | InY1 | InG | InPEKAlt
)

// Wire pairs a reported wire name with its bit.
type Wire struct {
	Name string
	Bit  Mask
}

// Monitored lists the wires reported by RelayStates and the diagnostic log,
// in log order.
var Monitored = []Wire{
	{"ACC", InACC},
	{"OB", InOB},
	{"W2/G3", InW2},
	{"Y2/G2", InY2},
	{"W1", InW1},
	{"Y1", InY1},
	{"G", InG},
	{"PEK_ALT", InPEKAlt},
}

var names = map[string]Mask{
	"PEK": InPEK, "ACC": InACC, "OB": InOB, "W2": InW2, "G3": InG3, "W2/G3": InW2,
	"Y2": InY2, "G2": InG2, "Y2/G2": InY2, "W1": InW1, "Y1": InY1, "G": InG,
	"EXT1": InEXT1, "EXT2": InEXT2, "EXT3": InEXT3, "EXT4": InEXT4,
	"PEK_ALT": InPEKAlt, "TP62": InTP62, "TP63": InTP63, "TP64": InTP64,
}

// States maps each monitored wire name to whether it is active in m.
func (m Mask) States() map[string]bool {
	out := make(map[string]bool, len(Monitored))
	for _, w := range Monitored {
		out[w.Name] = m&w.Bit != 0
	}
	return out
}

// Summary renders the monitored wires as "ACC=0 OB=1 ...".
func (m Mask) Summary() string {
	parts := make([]string, len(Monitored))
	for i, w := range Monitored {
		v := 0
		if m&w.Bit != 0 {
			v = 1
		}
		parts[i] = fmt.Sprintf("%s=%d", w.Name, v)
	}
	return strings.Join(parts, " ")
}

func (m Mask) String() string {
	return fmt.Sprintf("%016b", uint16(m))
}

// ParseMask accepts a number in any strconv base-0 form ("0x4100",
// "0b0100000100000000", "16640") or a comma-separated list of wire names
// ("G,Y1"). An empty string is InNone.
func ParseMask(s string) (Mask, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return InNone, nil
	}
	if n, err := strconv.ParseUint(s, 0, 16); err == nil {
		return Mask(n), nil
	}
	var m Mask
	for _, part := range strings.Split(s, ",") {
		name := strings.ToUpper(strings.TrimSpace(part))
		bit, ok := names[name]
		if !ok {
			return 0, fmt.Errorf("unknown wire %q", part)
		}
		m |= bit
	}
	return m, nil
}
