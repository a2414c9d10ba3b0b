package engine

import (
	"image"

	"github.com/mogaika/moiety/script"
)

type HotspotState struct {
	Index   int             `json:"index"`
	Name    string          `json:"name"`
	BLSTID  int             `json:"blst_id"`
	Rect    image.Rectangle `json:"rect"`
	Cursor  int             `json:"cursor"`
	ZipMode bool            `json:"zip_mode"`
	Enabled bool            `json:"enabled"`
	Current bool            `json:"current"`
}

// State is a snapshot of the session for operators.
type State struct {
	Location
	Installed  Location       `json:"installed"`
	CardName   string         `json:"card_name"`
	Cursor     int            `json:"cursor"`
	Busy       bool           `json:"busy"`
	Variables  map[string]int `json:"variables"`
	Hotspots   []HotspotState `json:"hotspots"`
	OpenScript []string       `json:"open_card,omitempty"`
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Location:  s.location,
		Cursor:    s.cursor.Shown(),
		Busy:      s.busy.Load(),
		Variables: make(map[string]int, len(s.vars)),
	}
	for k, v := range s.vars {
		st.Variables[k] = v
	}
	if s.stack == nil || s.card == nil {
		return st
	}
	st.Installed = Location{Stack: s.stack.Name, Card: s.card.id}
	st.CardName, _ = s.stack.CardNames.Lookup(s.card.card.Name)
	for i, h := range s.card.hotspots {
		name, _ := s.stack.HotspotNames.Lookup(h.Name)
		st.Hotspots = append(st.Hotspots, HotspotState{
			Index:   i + 1,
			Name:    name,
			BLSTID:  h.BLSTID,
			Rect:    h.Rect.Image(),
			Cursor:  h.Cursor,
			ZipMode: bool(h.ZipMode),
			Enabled: h.Enabled,
			Current: i == s.current,
		})
	}
	if seq, ok := s.card.card.Script.Handler(script.OpenCard); ok {
		st.OpenScript = script.RenderSequenceLines(seq)
	}
	return st
}
