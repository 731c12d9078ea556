package timeline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pulsesim/internal/monitoring"
	"github.com/banshee-data/pulsesim/internal/pulse"
)

func TestChannel_RecordsOnOff(t *testing.T) {
	s := NewSession()
	ch := s.Channel("397")
	ch.Set(80e6, WithAmplitude(0.5), WithPhase(0.25))
	ch.SetAtt(3)

	s.Delay(1)
	ch.On()
	s.Delay(2)
	ch.Off()

	require.Len(t, s.Pulses(), 1)
	assert.Equal(t, pulse.Pulse{
		Channel: "397", TimeOn: 1, TimeOff: 3,
		Frequency: 80e6, Amplitude: 0.5, Attenuation: 3, Phase: 0.25,
	}, s.Pulses()[0])
}

func TestChannel_IdempotentSwitching(t *testing.T) {
	s := NewSession()
	ch := s.Channel("866")

	ch.Off()
	assert.Empty(t, s.Pulses(), "off without on records nothing")

	ch.On()
	s.Delay(1)
	ch.On()
	s.Delay(1)
	ch.Off()
	ch.Off()

	require.Len(t, s.Pulses(), 1)
	assert.Equal(t, 0.0, s.Pulses()[0].TimeOn, "second On must not restamp")
	assert.Equal(t, 2.0, s.Pulses()[0].TimeOff)
}

func TestChannel_SampleAtClose(t *testing.T) {
	s := NewSession()
	ch := s.Channel("729G")
	ch.Set(1e6, WithAmplitude(1))
	ch.On()
	s.Delay(1)
	ch.Set(2e6, WithAmplitude(0.3))
	s.Delay(1)
	ch.Off()
	ch.Set(3e6)

	require.Len(t, s.Pulses(), 1)
	assert.Equal(t, 2e6, s.Pulses()[0].Frequency)
	assert.Equal(t, 0.3, s.Pulses()[0].Amplitude)
}

func TestChannel_ZeroLengthDropped(t *testing.T) {
	s := NewSession()
	ch := s.Channel("854")
	ch.On()
	ch.Off()
	assert.Empty(t, s.Pulses())
	assert.False(t, ch.IsOn())

	// Switched on and off in the same parallel block.
	s.Parallel(func() {
		ch.On()
		ch.Off()
	})
	assert.Empty(t, s.Pulses())
}

func TestChannel_Toggle(t *testing.T) {
	s := NewSession()
	ch := s.Channel("397")
	ch.Toggle()
	s.Delay(4)
	ch.Toggle()
	require.Len(t, s.Pulses(), 1)
	assert.Equal(t, 4.0, s.Pulses()[0].Duration())
}

func TestChannel_Defaults(t *testing.T) {
	ch := NewSession().Channel("x")
	assert.Equal(t, DefaultAttenuation, ch.Attenuation())
	assert.Zero(t, ch.Frequency())
	assert.Zero(t, ch.Amplitude())
	assert.Zero(t, ch.Phase())
	assert.Zero(t, ch.RefTime())
}

func TestSession_ParallelSwitching(t *testing.T) {
	s := NewSession("729G", "SP_729G")
	dp, sp := s.Channel("729G"), s.Channel("SP_729G")

	s.Parallel(func() {
		dp.On()
		sp.On()
	})
	s.Delay(5e-6)
	s.Parallel(func() {
		dp.Off()
		sp.Off()
	})

	got := s.Pulses()
	require.Len(t, got, 2)
	for _, p := range got {
		assert.Equal(t, 0.0, p.TimeOn)
		assert.Equal(t, 5e-6, p.TimeOff)
	}
	assert.Equal(t, "729G", got[0].Channel)
}

func TestSession_Reset(t *testing.T) {
	s := NewSession("a")
	ch := s.Channel("a")
	ch.SetAtt(1)
	ch.On()
	s.Delay(1)
	ch.Off()
	ch.On()
	assert.Equal(t, []string{"a"}, s.Open())

	s.Reset()
	assert.Empty(t, s.Pulses())
	assert.Empty(t, s.Open())
	assert.Equal(t, 0.0, s.Now())
	assert.Equal(t, DefaultAttenuation, ch.Attenuation())
	assert.Same(t, ch, s.Channel("a"), "channels survive a reset")
}

func TestSession_PulsesIsACopy(t *testing.T) {
	s := NewSession()
	ch := s.Channel("a")
	ch.On()
	s.Delay(1)
	ch.Off()
	got := s.Pulses()
	got[0].Channel = "mutated"
	assert.Equal(t, "a", s.Pulses()[0].Channel)
}

func TestSession_AllPulsesPositive(t *testing.T) {
	s := NewSession()
	a, b := s.Channel("a"), s.Channel("b")
	for i := 0; i < 5; i++ {
		s.Parallel(func() {
			a.Toggle()
			s.Sequential(func() {
				b.On()
				s.Delay(float64(i))
				b.Off()
			})
		})
	}
	for _, p := range s.Pulses() {
		assert.Less(t, p.TimeOn, p.TimeOff, "pulse %v", p)
	}
}

func TestSession_ChannelsInDeclarationOrder(t *testing.T) {
	s := NewSession("b", "a")
	s.Output("c")
	s.Declare("a", "d")
	assert.Equal(t, []string{"b", "a", "c", "d"}, s.Channels())
}

func TestTrace_ForwardsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession()
	var em Emitter = NewTrace(s, monitoring.NewLogger("trace", &buf))

	out := em.Output("397")
	out.Set(80e6, WithAmplitude(1))
	out.SetAmplitude(0.5)
	out.SetAtt(2)
	em.Parallel(func() { out.On() })
	em.Delay(3)
	em.Sequential(func() { out.Toggle() })

	require.Len(t, s.Pulses(), 1)
	p := s.Pulses()[0]
	assert.Equal(t, 3.0, p.TimeOff)
	assert.Equal(t, 0.5, p.Amplitude)
	assert.Equal(t, 2.0, p.Attenuation)
	assert.Equal(t, "397", out.Name())
	assert.Equal(t, 3.0, em.Now())

	logged := buf.String()
	for _, want := range []string{"level=TRACE", "msg=delay", "msg=on", "msg=toggle", "channel=397"} {
		assert.True(t, strings.Contains(logged, want), "missing %q in %s", want, logged)
	}
}

func TestTrace_QuietAboveTrace(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession()
	em := NewTrace(s, monitoring.NewLogger("info", &buf))
	em.Delay(1)
	em.Output("a").On()
	assert.Empty(t, buf.String())
	assert.Equal(t, 1.0, s.Now())
}
