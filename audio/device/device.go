// Package device plays a mixer through the system audio output.
package device

import (
	"log"
	"time"

	"github.com/gopxl/beep/speaker"
	"github.com/pkg/errors"

	"github.com/mogaika/moiety/audio"
)

func Open(m *audio.Mixer) error {
	rate := m.SampleRate()
	if err := speaker.Init(rate, rate.N(100*time.Millisecond)); err != nil {
		return errors.Wrap(err, "[audio] speaker init")
	}
	speaker.Play(m)
	log.Printf("[audio] playing through speaker at %d Hz", rate)
	return nil
}

func Close() {
	speaker.Clear()
	speaker.Close()
}
