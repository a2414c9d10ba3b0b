package web

import (
	"bytes"
	"image"
	"image/png"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/image/draw"

	"github.com/mogaika/moiety/config"
	"github.com/mogaika/moiety/engine"
	"github.com/mogaika/moiety/resource"
	"github.com/mogaika/moiety/webutils"
)

func (s *Server) HandlerResource(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t, err := resource.ParseType(vars["type"])
	if err != nil {
		webutils.WriteError(w, webutils.InvalidInput("%v", err))
		return
	}
	id, err := resource.ParseFileName(t, vars["file"])
	if err != nil {
		webutils.WriteError(w, webutils.InvalidInput("%v", err))
		return
	}
	key := resource.Key{Stack: vars["stack"], Type: t, ID: id}
	data, err := s.Resources.Fetch(r.Context(), key)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	webutils.WriteFile(w, bytes.NewReader(data), vars["file"], t.ContentType())
}

func (s *Server) HandlerStatus(w http.ResponseWriter, r *http.Request) {
	webutils.WriteJson(w, s.Hub.Recent())
}

func (s *Server) HandlerState(w http.ResponseWriter, r *http.Request) {
	webutils.WriteJson(w, s.Player.Session().State())
}

var inputKinds = map[string]engine.EventKind{
	"move": engine.EventMove,
	"down": engine.EventDown,
	"up":   engine.EventUp,
}

func (s *Server) HandlerInput(w http.ResponseWriter, r *http.Request) {
	kind, ok := inputKinds[mux.Vars(r)["kind"]]
	if !ok {
		webutils.WriteError(w, webutils.InvalidInput("unknown input %q", mux.Vars(r)["kind"]))
		return
	}
	q := r.URL.Query()
	x, err := webutils.IntParam("x", q.Get("x"))
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	y, err := webutils.IntParam("y", q.Get("y"))
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	p := image.Pt(x, y)
	if !p.In(s.bounds()) {
		webutils.WriteError(w, webutils.InvalidInput("point %v outside the screen", p))
		return
	}
	accepted := s.Player.Post(engine.Event{Kind: kind, Point: p})
	webutils.WriteJson(w, map[string]bool{"accepted": accepted})
}

func (s *Server) bounds() image.Rectangle {
	if s.Screen != nil {
		return s.Screen.Bounds()
	}
	return image.Rect(0, 0, config.ScreenWidth, config.ScreenHeight)
}

func (s *Server) HandlerGoto(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	stack := vars["stack"]
	if !config.IsStackName(stack) {
		webutils.WriteError(w, webutils.InvalidInput("unknown stack %q", stack))
		return
	}
	card, err := webutils.IntParam("card", vars["card"])
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	if card < 0 {
		webutils.WriteError(w, webutils.InvalidInput("negative card %d", card))
		return
	}
	if err := s.Player.Goto(r.Context(), stack, card); err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, s.Player.Session().State())
}

// HandlerScreen encodes the visible surface, optionally scaled to width w.
func (s *Server) HandlerScreen(w http.ResponseWriter, r *http.Request) {
	var img image.Image = s.Screen.Snapshot()
	if ws := r.URL.Query().Get("w"); ws != "" {
		width, err := webutils.IntParam("w", ws)
		if err != nil || width <= 0 || width > 4096 {
			webutils.WriteError(w, webutils.InvalidInput("bad width %q", ws))
			return
		}
		b := img.Bounds()
		dst := image.NewRGBA(image.Rect(0, 0, width, b.Dy()*width/b.Dx()))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		img = dst
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		webutils.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	webutils.WriteFile(w, &buf, "screen.png", "image/png")
}
