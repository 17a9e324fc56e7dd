package relay

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/relay-rig/internal/catalog"
	"github.com/sweeney/relay-rig/internal/expander"
	"github.com/sweeney/relay-rig/internal/pins"
)

type rigFixture struct {
	d       *Driver
	ic1     *expander.Fake
	ic2     *expander.Fake
	journal *expander.Journal
	sleeps  []time.Duration
	hook    *test.Hook
}

func newFixture(t *testing.T) *rigFixture {
	t.Helper()
	f := &rigFixture{journal: &expander.Journal{}}
	f.ic1 = expander.NewFake(expander.AddrIC1, f.journal)
	f.ic2 = expander.NewFake(expander.AddrIC2, f.journal)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f.hook = hook
	f.d = NewDriver(f.ic1, f.ic2,
		WithSleep(func(d time.Duration) { f.sleeps = append(f.sleeps, d) }),
		WithLogger(logger))
	return f
}

func TestApplyNikeFan(t *testing.T) {
	f := newFixture(t)
	c, err := catalog.Build(catalog.Profile{Model: catalog.Nike, HasRC: true, InPhase: true})
	require.NoError(t, err)
	fan, ok := c.Lookup(catalog.ConfigFan)
	require.True(t, ok)

	require.NoError(t, f.d.Apply(fan))

	active, err := f.d.ReadActivePins()
	require.NoError(t, err)
	assert.Equal(t, pins.Set{pins.S6GNoPEK, pins.S3RC}, active)
	assert.Equal(t, Configured, f.d.State())
	assert.Equal(t, fan, f.d.Applied())
}

func TestApplyWriteSequence(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.d.Apply(pins.NewSet(pins.S3RC, pins.S6GNoPEK)))

	assert.Equal(t, []expander.Write{
		// signal pins
		{Addr: expander.AddrIC1, Port: expander.PortA, Value: 0x80},
		{Addr: expander.AddrIC1, Port: expander.PortB, Value: 0x00},
		{Addr: expander.AddrIC2, Port: expander.PortA, Value: 0x00},
		{Addr: expander.AddrIC2, Port: expander.PortB, Value: 0x00},
		// power pins
		{Addr: expander.AddrIC1, Port: expander.PortA, Value: 0x80},
		{Addr: expander.AddrIC1, Port: expander.PortB, Value: 0x04},
		{Addr: expander.AddrIC2, Port: expander.PortA, Value: 0x00},
		{Addr: expander.AddrIC2, Port: expander.PortB, Value: 0x00},
	}, f.journal.Writes())

	// Cleanup found nothing active, so only its leading settle ran.
	assert.Equal(t, []time.Duration{SettleDelay, SettleDelay, SettleDelay}, f.sleeps)
}

func bankOf(addr uint8, p expander.Port) pins.Bank {
	b := pins.IC1GPIOA
	if addr == expander.AddrIC2 {
		b = pins.IC2GPIOA
	}
	if p == expander.PortB {
		b++
	}
	return b
}

func TestPowerPinsWrittenLast(t *testing.T) {
	for _, p := range []catalog.Profile{
		{Model: catalog.Nike, HasRC: true, InPhase: true},
		{Model: catalog.Apollo, HasRH: true, HasRC: true},
		{Model: catalog.Athena, HasPEK: true, HasRC: true, AccMinus: true},
	} {
		c, err := catalog.Build(p)
		require.NoError(t, err)

		for _, name := range c.Names() {
			cfg, _ := c.Lookup(name)
			f := newFixture(t)
			require.NoError(t, f.d.Apply(cfg), name)

			power := cfg.Tagged(pins.TagPower)
			signal := Compose(Image{}, cfg.Without(power), nil)
			powerImg := Compose(Image{}, power, nil)

			var seen Image
			firstPower := -1
			for i, w := range f.journal.Writes() {
				b := bankOf(w.Addr, w.Port)
				if w.Value&powerImg[b] != 0 {
					firstPower = i
					break
				}
				seen[b] |= w.Value
			}
			require.NotEqual(t, -1, firstPower, "%s %s: power never written", p, name)
			for _, b := range pins.Banks {
				assert.Equal(t, signal[b], seen[b]&signal[b], "%s %s: %s signal bits after power", p, name, b)
			}
		}
	}
}

func TestApplyThenCleanupLeavesNothingActive(t *testing.T) {
	f := newFixture(t)
	c, err := catalog.Build(catalog.DefaultProfile())
	require.NoError(t, err)

	for _, name := range []string{catalog.ConfigPower, catalog.ConfigAll, "CONFIG_HPHEAT_2_STAGE_AUX_1_STAGE_ACC"} {
		cfg, ok := c.Lookup(name)
		require.True(t, ok, name)
		require.NoError(t, f.d.Apply(cfg))
		f.d.Cleanup()

		active, err := f.d.ReadActivePins()
		require.NoError(t, err)
		assert.Empty(t, active, name)
		assert.Equal(t, Unconfigured, f.d.State())
		assert.Nil(t, f.d.Applied())
	}
}

func TestCleanupRemovesPowerFirst(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.d.Apply(pins.NewSet(pins.S3RC, pins.S21RH, pins.S6GNoPEK, pins.S11Y1NoPEK)))
	f.journal.Reset()
	f.sleeps = nil

	f.d.Cleanup()

	writes := f.journal.Writes()
	require.Len(t, writes, 8)
	assert.Equal(t, byte(0x80), writes[0].Value, "IC1 GPIOA keeps G")
	assert.Equal(t, byte(0x00), writes[1].Value, "IC1 GPIOB loses power")
	assert.Equal(t, byte(0x01), writes[3].Value, "IC2 GPIOB keeps Y1")
	for _, w := range writes[4:] {
		assert.Zero(t, w.Value)
	}
	assert.Equal(t, []time.Duration{SettleDelay, SettleDelay, SettleDelay}, f.sleeps)
}

func TestCleanupIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.d.Cleanup()
	f.d.Cleanup()
	assert.Empty(t, f.journal.Writes())
	assert.Equal(t, Unconfigured, f.d.State())
}

func TestCleanupPicksUpUntrackedHardwareBits(t *testing.T) {
	f := newFixture(t)
	f.ic2.Set(expander.PortA, 0x06) // aquastat bits left on

	f.d.Cleanup()

	assert.Zero(t, f.ic2.Latched(expander.PortA))
	assert.NotEmpty(t, f.journal.Writes())
}

func TestCleanupContinuesOnBusErrors(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.d.Apply(pins.NewSet(pins.S3RC, pins.S16Y2G2)))

	boom := errors.New("i2c nack")
	f.ic1.ReadError = boom
	f.ic1.WriteError = boom
	f.journal.Reset()

	f.d.Cleanup()

	// IC2 is still cleared even though IC1 fails.
	assert.Zero(t, f.ic2.Latched(expander.PortA))
	assert.Equal(t, Unconfigured, f.d.State())

	var warned bool
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestApplyConflictingPins(t *testing.T) {
	f := newFixture(t)
	f.ic1.Set(expander.PortB, 0x04) // S3_RC left energized

	err := f.d.Apply(pins.NewSet(pins.S7GPEKAthena, pins.S8GPEKNotAthena, pins.S3RC))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflictingPins)

	var cpe *ConflictingPinsError
	require.ErrorAs(t, err, &cpe)
	require.Len(t, cpe.Conflicts, 1)
	assert.Equal(t, pins.TagAthena, cpe.Conflicts[0].Left)
	assert.Contains(t, err.Error(), "S7_G_PEK_ATHENA")

	for _, w := range f.journal.Writes() {
		if w.Addr == expander.AddrIC1 && w.Port == expander.PortA {
			assert.Zero(t, w.Value&0x60, "conflicting bits written")
		}
	}
	active, err := f.d.ReadActivePins()
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Equal(t, Unconfigured, f.d.State())
}

func TestApplyUnknownPin(t *testing.T) {
	f := newFixture(t)
	err := f.d.Apply(pins.Set{pins.S3RC, "S99_BOGUS"})
	assert.ErrorIs(t, err, ErrUnknownPin)
	assert.Empty(t, f.journal.Writes())
	assert.Empty(t, f.sleeps)
}

func TestApplyBusError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("i2c nack")
	f.ic2.WriteError = boom

	err := f.d.Apply(pins.NewSet(pins.S3RC, pins.S6GNoPEK))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBus)
	assert.ErrorIs(t, err, boom)

	var be *BusError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "write", be.Op)
	assert.Equal(t, pins.IC2GPIOA, be.Bank)
	assert.Equal(t, Unconfigured, f.d.State())
}

func TestApplyReadbackMismatchIsAdvisory(t *testing.T) {
	f := newFixture(t)
	f.ic1.IgnoreWrites = true

	require.NoError(t, f.d.Apply(pins.NewSet(pins.S3RC, pins.S6GNoPEK)))
	assert.Equal(t, Configured, f.d.State())
	require.NotNil(t, f.hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, f.hook.LastEntry().Level)
}
