package catalog

import (
	"strings"

	"github.com/sweeney/relay-rig/internal/pins"
)

// groups are the stage building blocks whose physical pins vary by model.
type groups struct {
	acc     pins.Set // accessory relays
	fan2    pins.Set
	fan3    pins.Set
	ob      pins.Set
	y2      pins.Set
	pekPlus pins.Set
	stage2  pins.Set // second heat stage
}

func groupsFor(p Profile) groups {
	g := groups{
		fan2:    pins.NewSet(pins.S16Y2G2),
		fan3:    pins.NewSet(pins.S16Y2G2, pins.S17W2G3),
		ob:      pins.NewSet(pins.S18OB),
		y2:      pins.NewSet(pins.S16Y2G2),
		pekPlus: pins.NewSet(pins.PEKAlt),
		stage2:  pins.NewSet(pins.S17W2G3),
	}

	switch {
	case !p.AccMinus && p.Model != Artemis:
		g.acc = pins.NewSet(pins.S19ACCP)
	case !p.HasPEK && p.Model == Artemis:
		g.acc = pins.NewSet(pins.PEKAlt)
	default:
		g.acc = pins.NewSet(pins.S19ACCP, pins.S20ACCM)
	}

	// Artemis shares its W2 terminal with OB and routes G3 through PEK_ALT.
	// AttisRetail wires Y2 to the W2 relay and OB alongside it.
	switch p.Model {
	case Artemis:
		g.fan3 = pins.NewSet(pins.S16Y2G2, pins.PEKAlt)
		g.ob = pins.NewSet(pins.S17W2G3)
	case AttisRetail:
		g.ob = pins.NewSet(pins.S17W2G3)
		g.y2 = pins.NewSet(pins.S17W2G3)
	}
	return g
}

func powerBase(p Profile) pins.Set {
	switch {
	case p.HasPEK && p.Model == Athena:
		return pins.NewSet(pins.S1RCPEK, pins.S7GPEKAthena, pins.S3RC, pins.S12YPEKAthena)
	case p.HasPEK:
		return pins.NewSet(pins.S1RCPEK, pins.S3RC, pins.S8GPEKNotAthena, pins.S13YPEKNotAthena)
	case p.HasRH && !p.HasRC:
		return pins.NewSet(pins.S24RHOnly)
	case !p.HasRH:
		return pins.NewSet(pins.S3RC)
	case p.InPhase:
		return pins.NewSet(pins.S3RC, pins.S21RH)
	}
	return pins.NewSet(pins.S3RC, pins.S21RH, pins.RHOutPhase)
}

// derive builds the full name to pin-set table for a validated profile.
// def takes names without the CONFIG_ prefix.
func derive(p Profile) map[string]pins.Set {
	g := groupsFor(p)
	t := make(map[string]pins.Set)
	def := func(name string, base pins.Set, add ...pins.Set) pins.Set {
		s := base.Union(add...)
		t["CONFIG_"+name] = s
		return s
	}

	power := def("POWER", powerBase(p))

	var fan, ac1, bo1, fn1, fn1ac1, bo1ac1, ac2 pins.Set
	if p.HasPEK {
		w := pins.NewSet(pins.S15WPEK)
		fan = def("FAN", power)
		def("FAN_2_STAGE", fan, g.fan2)
		def("FAN_3_STAGE", fan, g.fan3)

		ac1 = def("AC_1_STAGE", fan)
		def("AC_1_STAGE_FAN_2_STAGE", ac1, g.fan2)
		def("AC_1_STAGE_FAN_3_STAGE", ac1, g.fan3)

		bo1 = def("BO_1_STAGE", fan, w)
		ac2 = def("AC_2_STAGE", power, g.y2)

		bo1ac1 = def("BO_1_STAGE_AC_1_STAGE", ac1, w)
		def("BO_1_STAGE_AC_1_STAGE_FAN_2_STAGE", bo1ac1, g.fan2)
		def("BO_1_STAGE_AC_1_STAGE_FAN_3_STAGE", bo1ac1, g.fan3)

		fn1 = def("FN_1_STAGE", power, w)
		def("FN_1_STAGE_FAN_2_STAGE", fn1, g.fan2)
		def("FN_1_STAGE_FAN_3_STAGE", fn1, g.fan3)

		fn1ac1 = def("FN_1_STAGE_AC_1_STAGE", ac1, w)
		def("FN_1_STAGE_AC_1_STAGE_FAN_2_STAGE", fn1ac1, g.fan2)
		def("FN_1_STAGE_AC_1_STAGE_FAN_3_STAGE", fn1ac1, g.fan3)
	} else {
		w1 := pins.NewSet(pins.S14W1NoPEK)
		y1 := pins.NewSet(pins.S11Y1NoPEK)
		if p.Model == AttisRetail || p.Model == AttisPro {
			fan = def("FAN", power, pins.NewSet(pins.PEKAlt))
		} else {
			fan = def("FAN", power, pins.NewSet(pins.S6GNoPEK))
		}
		def("FAN_2_STAGE", fan, g.fan2)
		def("FAN_3_STAGE", fan, g.fan3)

		bo1 = def("BO_1_STAGE", power, w1)

		ac1 = def("AC_1_STAGE", fan, y1)
		def("AC_1_STAGE_FAN_2_STAGE", ac1, g.fan2)
		def("AC_1_STAGE_FAN_3_STAGE", ac1, g.fan3)

		bo1ac1 = def("BO_1_STAGE_AC_1_STAGE", ac1, w1)
		def("BO_1_STAGE_AC_1_STAGE_FAN_2_STAGE", bo1ac1, g.fan2)
		def("BO_1_STAGE_AC_1_STAGE_FAN_3_STAGE", bo1ac1, g.fan3)

		fn1 = def("FN_1_STAGE", fan, w1)
		def("FN_1_STAGE_FAN_2_STAGE", fn1, g.fan2)
		def("FN_1_STAGE_FAN_3_STAGE", fn1, g.fan3)

		fn1ac1 = def("FN_1_STAGE_AC_1_STAGE", bo1ac1)
		def("FN_1_STAGE_AC_1_STAGE_FAN_2_STAGE", bo1ac1, g.fan2)
		def("FN_1_STAGE_AC_1_STAGE_FAN_3_STAGE", bo1ac1, g.fan3)

		ac2 = def("AC_2_STAGE", ac1, g.y2)
	}

	bo2 := def("BO_2_STAGE", bo1, g.stage2)
	bo1ac2 := def("BO_1_STAGE_AC_2_STAGE", bo1ac1, g.y2)
	bo2ac1 := def("BO_2_STAGE_AC_1_STAGE", bo1ac1, g.stage2)
	def("BO_2_STAGE_AC_1_STAGE_FAN_2_STAGE", bo2ac1, g.fan2)
	bo2ac2 := def("BO_2_STAGE_AC_2_STAGE", bo2ac1, g.y2)

	fn2 := def("FN_2_STAGE", fn1, g.stage2)
	fn2f2 := def("FN_2_STAGE_FAN_2_STAGE", fn2, g.fan2)
	fn1ac2 := def("FN_1_STAGE_AC_2_STAGE", fn1ac1, g.y2)
	fn2ac1 := def("FN_2_STAGE_AC_1_STAGE", fn1ac1, g.stage2)
	def("FN_2_STAGE_AC_1_STAGE_FAN_2_STAGE", fn2ac1, g.fan2)
	fn2ac2 := def("FN_2_STAGE_AC_2_STAGE", fn2ac1, g.y2)

	hp1 := def("HPCOOL_1_STAGE", ac1, g.ob)
	def("HPCOOL_1_STAGE_FAN_2_STAGE", hp1, g.fan2)
	def("HPCOOL_1_STAGE_FAN_3_STAGE", hp1, g.fan3)
	hp2 := def("HPCOOL_2_STAGE", hp1, g.y2)

	hp1aux1 := def("HPCOOL_1_STAGE_AUX_1_STAGE", fn1ac1, g.ob)
	def("HPCOOL_1_STAGE_AUX_1_STAGE_FAN_2_STAGE", hp1aux1, g.fan2)
	def("HPCOOL_1_STAGE_AUX_1_STAGE_FAN_3_STAGE", hp1aux1, g.fan3)
	hp1aux2 := def("HPCOOL_1_STAGE_AUX_2_STAGE", fn2ac1, g.ob)
	def("HPCOOL_1_STAGE_AUX_2_STAGE_FAN_2_STAGE", hp1aux2, g.fan2)
	hp2aux1 := def("HPCOOL_2_STAGE_AUX_1_STAGE", hp1aux1, g.y2)
	hp2aux2 := def("HPCOOL_2_STAGE_AUX_2_STAGE", hp2aux1, g.stage2)

	// Accessory variants. X_ACC adds the accessory relays to X and
	// X_ACC_2_STAGE adds PEK_PLUS on top of X_ACC.
	acc := func(name string, base pins.Set, extra ...pins.Set) {
		a := def(name+"_ACC", base.Union(extra...), g.acc)
		def(name+"_ACC_2_STAGE", a, g.pekPlus)
	}
	accOnly := func(name string, base pins.Set, extra ...pins.Set) {
		def(name+"_ACC", base.Union(extra...), g.acc)
	}

	acc("FAN", fan)
	acc("FAN_2_STAGE", fan, g.fan2)
	acc("FAN_3_STAGE", fan, g.fan3)

	acc("AC_1_STAGE", ac1)
	acc("AC_1_STAGE_FAN_2_STAGE", ac1, g.fan2)
	acc("AC_1_STAGE_FAN_3_STAGE", ac1, g.fan3)
	acc("AC_2_STAGE", ac2)

	acc("FN_1_STAGE", fn1)
	acc("FN_1_STAGE_FAN_2_STAGE", fn1, g.fan2)
	acc("FN_1_STAGE_FAN_3_STAGE", fn1, g.fan3)
	acc("FN_2_STAGE", fn2)
	accOnly("FN_2_STAGE_FAN_2_STAGE", fn2f2)

	acc("BO_1_STAGE", bo1)
	acc("BO_2_STAGE", bo2)
	acc("BO_1_STAGE_AC_1_STAGE", bo1ac1)
	accOnly("BO_1_STAGE_AC_1_STAGE_FAN_2_STAGE", bo1ac1, g.fan2)
	accOnly("BO_1_STAGE_AC_1_STAGE_FAN_3_STAGE", bo1ac1, g.fan3)
	acc("BO_1_STAGE_AC_2_STAGE", bo1ac2)
	acc("BO_2_STAGE_AC_1_STAGE", bo2ac1)
	accOnly("BO_2_STAGE_AC_1_STAGE_FAN_2_STAGE", bo2ac1, g.fan2)
	acc("BO_2_STAGE_AC_2_STAGE", bo2ac2)

	def("FN_1_STAGE_AC_1_STAGE_PEK_ACC", fn1ac1, g.pekPlus)
	acc("FN_1_STAGE_AC_1_STAGE", fn1ac1)
	acc("FN_1_STAGE_AC_1_STAGE_FAN_2_STAGE", fn1ac1, g.fan2)
	acc("FN_1_STAGE_AC_1_STAGE_FAN_3_STAGE", fn1ac1, g.fan3)
	acc("FN_1_STAGE_AC_2_STAGE", fn1ac2)
	acc("FN_2_STAGE_AC_1_STAGE", fn2ac1)
	accOnly("FN_2_STAGE_AC_1_STAGE_FAN_2_STAGE", fn2ac1, g.fan2)
	acc("FN_2_STAGE_AC_2_STAGE", fn2ac2)

	acc("HPCOOL_1_STAGE", hp1)
	accOnly("HPCOOL_1_STAGE_FAN_2_STAGE", hp1, g.fan2)
	acc("HPCOOL_1_STAGE_FAN_3_STAGE", hp1, g.fan3)
	acc("HPCOOL_2_STAGE", hp2)
	acc("HPCOOL_1_STAGE_AUX_1_STAGE", hp1aux1)
	acc("HPCOOL_1_STAGE_AUX_1_STAGE_FAN_2_STAGE", hp1aux1, g.fan2)
	acc("HPCOOL_1_STAGE_AUX_1_STAGE_FAN_3_STAGE", hp1aux1, g.fan3)
	acc("HPCOOL_1_STAGE_AUX_2_STAGE", hp1aux2)
	accOnly("HPCOOL_1_STAGE_AUX_2_STAGE_FAN_2_STAGE", hp1aux2, g.fan2)
	acc("HPCOOL_2_STAGE_AUX_1_STAGE", hp2aux1)
	acc("HPCOOL_2_STAGE_AUX_2_STAGE", hp2aux2)

	def("ALL", hp2aux2, g.acc)

	// Heat-pump heating energizes the same relays as heat-pump cooling; the
	// reversing valve polarity is handled by the thermostat.
	var cool []string
	for name := range t {
		if strings.HasPrefix(name, "CONFIG_HPCOOL_") {
			cool = append(cool, name)
		}
	}
	for _, name := range cool {
		heat := strings.Replace(name, "HPCOOL", "HPHEAT", 1)
		if heat == "CONFIG_HPHEAT_1_STAGE_FAN_3_STAGE_ACC_2_STAGE" {
			continue
		}
		t[heat] = t[name]
	}
	return t
}
