package video

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeVIA struct{ vblanks int }

func (f *fakeVIA) RaiseVBlank() { f.vblanks++ }

func TestVBlankPeriod(t *testing.T) {
	via := &fakeVIA{}
	v := New(nil, via)

	require.Equal(t, 0, v.Scanline())
	require.True(t, v.InVBlank())

	v.Tick(28*(512+192) - 1)
	require.True(t, v.InVBlank())
	require.Equal(t, 27, v.Scanline())

	v.Tick(1)
	require.Equal(t, 28, v.Scanline())
	require.False(t, v.InVBlank())
	require.False(t, v.GetClrVBlank())

	v.Tick(342*(512+192) - 1)
	require.Equal(t, 369, v.Scanline())
	require.False(t, v.InVBlank())

	v.Tick(1)
	require.Equal(t, 0, v.Scanline())
	require.True(t, v.InVBlank())
	require.True(t, v.GetClrVBlank())
	require.Equal(t, 1, via.vblanks)
}

func TestHBlankPeriod(t *testing.T) {
	v := New(nil, nil)
	for i := 0; i < 370; i++ {
		require.False(t, v.InHBlank())
		v.Tick(512)
		require.True(t, v.InHBlank())
		v.Tick(192)
	}
}

func TestHBlankLatchesSoundAndPWM(t *testing.T) {
	v := New(nil, nil)
	sampler := &countingSampler{}
	pwm := &countingPWM{}
	v.SetAudioSampler(sampler)
	v.SetPWMSampler(pwm)
	v.SetSoundSource(zeroSoundSource{})

	v.Tick(hVisibleDots)
	require.Equal(t, 1, sampler.calls)
	require.Equal(t, 1, pwm.calls)
}

type countingSampler struct{ calls int }

func (c *countingSampler) Tick(queueSample bool) { c.calls++ }

type countingPWM struct{ calls int }

func (c *countingPWM) PushPWM(sample uint8) { c.calls++ }

type zeroSoundSource struct{}

func (zeroSoundSource) SoundByte(offset int) uint8 { return 0 }
