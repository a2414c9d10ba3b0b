package audio

import "github.com/gopxl/beep"

// fader scales a stream by a gain that moves linearly towards target,
// one step per sample.
type fader struct {
	Streamer beep.Streamer
	gain     float64
	target   float64
	step     float64
}

func (f *fader) retarget(target float64, samples int) {
	f.target = target
	if samples <= 0 || f.gain == target {
		f.gain = target
		f.step = 0
		return
	}
	f.step = (target - f.gain) / float64(samples)
}

func (f *fader) settled() bool {
	return f.gain == f.target
}

func (f *fader) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = f.Streamer.Stream(samples)
	for i := range samples[:n] {
		if f.step != 0 {
			f.gain += f.step
			if (f.step > 0 && f.gain >= f.target) || (f.step < 0 && f.gain <= f.target) {
				f.gain = f.target
				f.step = 0
			}
		}
		samples[i][0] *= f.gain
		samples[i][1] *= f.gain
	}
	return n, ok
}

func (f *fader) Err() error {
	return f.Streamer.Err()
}
