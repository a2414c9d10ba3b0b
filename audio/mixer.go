package audio

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/mogaika/moiety/resource"
)

const resampleQuality = 4

// Track is one background sound of a mix.
type Track struct {
	Key   resource.Key
	Sound *Sound
	Gain  float64
	Pan   float64
}

// Mix is the desired set of background sounds.
type Mix struct {
	Tracks  []Track
	FadeIn  bool
	FadeOut bool
	Loop    bool
}

// TrackGain maps an SLST per-sound volume and set volume to a linear gain.
func TrackGain(volume, global int) float64 {
	g := float64(volume) / 256 * float64(global) / 256
	return math.Max(0, math.Min(1, g))
}

// BalancePan maps an SLST balance to a pan position in [-1, 1].
func BalancePan(balance int) float64 {
	return math.Max(-1, math.Min(1, float64(balance)/127))
}

type channel struct {
	key     resource.Key
	pan     *effects.Pan
	fader   *fader
	leaving bool
}

type ChannelState struct {
	Key     resource.Key
	Gain    float64
	Target  float64
	Pan     float64
	Leaving bool
}

// Mixer plays background channels with volume ramps plus one-shot sounds.
// It is a beep.Streamer and is driven either by a speaker or by Drain.
type Mixer struct {
	mu       sync.Mutex
	rate     beep.SampleRate
	fade     int
	channels []*channel
	oneshots beep.Mixer
	master   *effects.Volume
	scratch  [][2]float64
}

func NewMixer(rate beep.SampleRate, fade time.Duration) *Mixer {
	m := &Mixer{rate: rate, fade: rate.N(fade)}
	m.master = &effects.Volume{Streamer: beep.StreamerFunc(m.mix), Base: 2}
	return m
}

func (m *Mixer) SampleRate() beep.SampleRate { return m.rate }

// SetMaster sets the linear output gain.
func (m *Mixer) SetMaster(gain float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gain <= 0 {
		m.master.Silent = true
		return
	}
	m.master.Silent = false
	m.master.Volume = math.Log2(gain)
}

func (m *Mixer) source(snd *Sound, loop bool) beep.Streamer {
	var s beep.Streamer = snd.Streamer()
	if loop {
		s = beep.Loop(-1, snd.Streamer())
	}
	if snd.format.SampleRate != m.rate {
		s = beep.Resample(resampleQuality, snd.format.SampleRate, m.rate, s)
	}
	return s
}

// Apply reconciles the playing background channels against mix. Tracks
// already playing are retargeted, new ones start silent and ramp up when
// the mix fades in, and missing ones ramp down and stop when it fades out
// or stop at once otherwise.
func (m *Mixer) Apply(mix Mix) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[resource.Key]Track, len(mix.Tracks))
	var order []resource.Key
	for _, t := range mix.Tracks {
		if _, dup := want[t.Key]; !dup {
			want[t.Key] = t
			order = append(order, t.Key)
		}
	}

	kept := m.channels[:0]
	for _, c := range m.channels {
		if t, ok := want[c.key]; ok {
			c.leaving = false
			c.pan.Pan = t.Pan
			c.fader.retarget(t.Gain, m.fade)
			delete(want, c.key)
			kept = append(kept, c)
		} else if mix.FadeOut {
			c.leaving = true
			c.fader.retarget(0, m.fade)
			kept = append(kept, c)
		}
	}
	m.channels = kept

	for _, k := range order {
		t, ok := want[k]
		if !ok || t.Sound == nil {
			continue
		}
		pan := &effects.Pan{Streamer: m.source(t.Sound, mix.Loop), Pan: t.Pan}
		f := &fader{Streamer: pan, gain: t.Gain, target: t.Gain}
		if mix.FadeIn {
			f.gain = 0
			f.retarget(t.Gain, m.fade)
		}
		m.channels = append(m.channels, &channel{key: k, pan: pan, fader: f})
	}
}

// ClearBackground stops every background channel at once.
func (m *Mixer) ClearBackground() {
	m.mu.Lock()
	m.channels = nil
	m.mu.Unlock()
}

// Play starts a one-shot sound; the returned channel closes when it ends.
func (m *Mixer) Play(snd *Sound) <-chan struct{} {
	done := make(chan struct{})
	s := beep.Seq(m.source(snd, false), beep.Callback(func() { close(done) }))
	m.mu.Lock()
	m.oneshots.Add(s)
	m.mu.Unlock()
	return done
}

func (m *Mixer) Channels() []ChannelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]ChannelState, 0, len(m.channels))
	for _, c := range m.channels {
		res = append(res, ChannelState{
			Key:     c.key,
			Gain:    c.fader.gain,
			Target:  c.fader.target,
			Pan:     c.pan.Pan,
			Leaving: c.leaving,
		})
	}
	return res
}

func (m *Mixer) Stream(samples [][2]float64) (n int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.master.Stream(samples)
}

func (m *Mixer) Err() error { return nil }

// mix runs with m.mu held.
func (m *Mixer) mix(samples [][2]float64) (int, bool) {
	for i := range samples {
		samples[i] = [2]float64{}
	}
	if cap(m.scratch) < len(samples) {
		m.scratch = make([][2]float64, len(samples))
	}
	tmp := m.scratch[:len(samples)]

	live := m.channels[:0]
	for _, c := range m.channels {
		n, ok := c.fader.Stream(tmp)
		for i := range tmp[:n] {
			samples[i][0] += tmp[i][0]
			samples[i][1] += tmp[i][1]
		}
		if !ok || (c.leaving && c.fader.settled()) {
			continue
		}
		live = append(live, c)
	}
	for i := len(live); i < len(m.channels); i++ {
		m.channels[i] = nil
	}
	m.channels = live

	n, _ := m.oneshots.Stream(tmp)
	for i := range tmp[:n] {
		samples[i][0] += tmp[i][0]
		samples[i][1] += tmp[i][1]
	}
	return len(samples), true
}

// Drain pulls samples from s in real time, standing in for an audio device
// so that fades progress and one-shot sounds finish.
func Drain(ctx context.Context, s beep.Streamer, rate beep.SampleRate, period time.Duration) {
	buf := make([][2]float64, rate.N(period))
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Stream(buf)
		}
	}
}
