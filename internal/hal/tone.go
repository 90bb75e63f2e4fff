package hal

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
)

const (
	toneSampleRate = 48000
	tonePitch      = 440.0
	toneAmplitude  = 0.25
)

// TonePlayer produces the beep driven by the machine's sound timer: a
// 440Hz triangle wave. The oto player streams continuously and the
// active flag gates the waveform, so starting and stopping the tone
// never stalls the audio pipeline.
type TonePlayer struct {
	ctx    *oto.Context
	player *oto.Player
	active atomic.Bool
	phase  float64
}

func NewTonePlayer() (*TonePlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   toneSampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	t := &TonePlayer{ctx: ctx}
	t.player = ctx.NewPlayer(t)
	t.player.Play()
	return t, nil
}

// Read implements io.Reader for the oto player: float32 little-endian
// mono samples, silence while the tone is off.
func (t *TonePlayer) Read(p []byte) (int, error) {
	n := len(p) / 4

	if !t.active.Load() {
		t.phase = 0
		for i := range p[:n*4] {
			p[i] = 0
		}
		return n * 4, nil
	}

	step := tonePitch / toneSampleRate
	for i := 0; i < n; i++ {
		// Triangle wave in [-1, 1].
		sample := 4*math.Abs(t.phase-math.Floor(t.phase+0.5)) - 1
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(float32(sample*toneAmplitude)))
		t.phase += step
		if t.phase >= 1 {
			t.phase -= 1
		}
	}
	return n * 4, nil
}

func (t *TonePlayer) Start() { t.active.Store(true) }
func (t *TonePlayer) Stop()  { t.active.Store(false) }

func (t *TonePlayer) Close() {
	t.active.Store(false)
	if t.player != nil {
		_ = t.player.Close()
	}
	if t.ctx != nil {
		_ = t.ctx.Suspend()
	}
}
