package resource

import (
	"bytes"
	"encoding/json"
	"image"

	"github.com/pkg/errors"

	"github.com/mogaika/moiety/script"
)

// Flag is a boolean stored either as a JSON bool or as a 0/1 number.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true":
		*f = true
		return nil
	case "false", "null":
		*f = false
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrapf(err, "bad flag %s", data)
	}
	*f = n != 0
	return nil
}

type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

func (r Rect) Image() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

func (r Rect) Contains(p image.Point) bool {
	return p.X >= r.Left && p.X < r.Right && p.Y >= r.Top && p.Y < r.Bottom
}

type Card struct {
	Name    int           `json:"name"`
	ZipMode Flag          `json:"zip_mode"`
	Script  script.Script `json:"script"`
}

// Picture is a PLST entry.
type Picture struct {
	Rect
	Bitmap int `json:"bitmap"`
}

// PictureList is indexed from 1; entry 0 is a placeholder.
type PictureList []Picture

func (l PictureList) Get(i int) (*Picture, bool) {
	if i < 1 || i >= len(l) {
		return nil, false
	}
	return &l[i], true
}

// Button is a BLST entry overriding the enablement of hotspots whose
// BLSTID equals HotspotID.
type Button struct {
	Enabled   Flag `json:"enabled"`
	HotspotID int  `json:"hotspot_id"`
}

type ButtonList []Button

func (l ButtonList) Get(i int) (*Button, bool) {
	if i < 1 || i >= len(l) {
		return nil, false
	}
	return &l[i], true
}

// Hotspot is an HSPT entry.
type Hotspot struct {
	Rect
	BLSTID  int           `json:"blst_id"`
	Name    int           `json:"name"`
	Cursor  int           `json:"cursor"`
	ZipMode Flag          `json:"zip_mode"`
	Script  script.Script `json:"script"`
}

type HotspotList []Hotspot

// Entries skips the placeholder at index 0.
func (l HotspotList) Entries() []Hotspot {
	if len(l) == 0 {
		return nil
	}
	return l[1:]
}

type SoundRef struct {
	SoundID int `json:"sound_id"`
	Volume  int `json:"volume"`
	Balance int `json:"balance"`
}

// Fade flag bits of a sound set.
const (
	FadeOut = 1 << 0
	FadeIn  = 1 << 1
)

// SoundSet is an SLST entry: the desired background mix of a card.
type SoundSet struct {
	Sounds    []SoundRef `json:"sounds"`
	FadeFlags int        `json:"fade_flags"`
	Looping   Flag       `json:"looping"`
	Volume    int        `json:"global_volume"`
}

type SoundSetList []SoundSet

func (l SoundSetList) Get(i int) (*SoundSet, bool) {
	if i < 1 || i >= len(l) {
		return nil, false
	}
	return &l[i], true
}

type NameTable []string

func (t NameTable) Lookup(i int) (string, bool) {
	if i < 0 || i >= len(t) {
		return "", false
	}
	return t[i], true
}

// RoomMap maps card ids (the index) to map codes.
type RoomMap []uint32

// Find returns the card id whose map code equals code.
func (m RoomMap) Find(code uint32) (int, bool) {
	for i, c := range m {
		if c == code {
			return i, true
		}
	}
	return 0, false
}

// Record is a structured resource this engine does not interpret
// (FLST, MLST, SFXE, VARS, VERS, ZIPS).
type Record json.RawMessage

// Movie is a tMOV resource kept as its encoded bytes.
type Movie struct {
	Data []byte
}
