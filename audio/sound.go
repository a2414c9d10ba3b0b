package audio

import (
	"bytes"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/pkg/errors"

	"github.com/mogaika/moiety/resource"
)

// Sound is a fully decoded tWAV resource.
type Sound struct {
	format beep.Format
	buf    *beep.Buffer
}

func NewSound(format beep.Format, s beep.Streamer) *Sound {
	buf := beep.NewBuffer(format)
	buf.Append(s)
	return &Sound{format: format, buf: buf}
}

func Decode(data []byte) (*Sound, error) {
	s, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "[audio] wav decode")
	}
	defer s.Close()
	snd := NewSound(format, s)
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "[audio] wav stream")
	}
	return snd, nil
}

func (s *Sound) Format() beep.Format { return s.format }

// Len is the length in samples at the sound's own rate.
func (s *Sound) Len() int { return s.buf.Len() }

func (s *Sound) Duration() time.Duration {
	return s.format.SampleRate.D(s.buf.Len())
}

// Streamer starts a new independent playback of the sound.
func (s *Sound) Streamer() beep.StreamSeeker {
	return s.buf.Streamer(0, s.buf.Len())
}

func init() {
	resource.SetHandler(resource.TWAV, func(key resource.Key, data []byte) (interface{}, error) {
		return Decode(data)
	})
}
