package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/mogaika/moiety/audio"
	"github.com/mogaika/moiety/cache"
	"github.com/mogaika/moiety/config"
	"github.com/mogaika/moiety/loader"
	"github.com/mogaika/moiety/resource"
	"github.com/mogaika/moiety/screen"
	"github.com/mogaika/moiety/script"
	"github.com/mogaika/moiety/status"
	"github.com/mogaika/moiety/utils"
)

// variable ids in the test stacks' NAME 4 table
const (
	varGate = iota + 1
	varCloses
	varLoads
	varOpens
	varEnters
	varLeaves
	varWithins
	varDowns
	varUps
)

type world struct {
	mu      sync.Mutex
	data    map[resource.Key][]byte
	fetched []resource.Key
}

func newWorld() *world {
	return &world{data: make(map[resource.Key][]byte)}
}

func (w *world) put(stack string, t resource.Type, id int, v string) {
	w.data[resource.Key{Stack: stack, Type: t, ID: id}] = []byte(v)
}

func (w *world) Fetch(ctx context.Context, key resource.Key) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fetched = append(w.fetched, key)
	d, ok := w.data[key]
	if !ok {
		return nil, loader.ErrNotFound
	}
	return d, nil
}

func (w *world) fetches() []resource.Key {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]resource.Key(nil), w.fetched...)
}

func (w *world) stack(name string) {
	w.put(name, resource.NAME, 1, `["", "card-one", "card-two"]`)
	w.put(name, resource.NAME, 2, `["", "hotspot-one", "hotspot-two"]`)
	w.put(name, resource.NAME, 3, `["", "xasetupcomplete", "xnothing"]`)
	w.put(name, resource.NAME, 4, `["", "tgatestate", "closes", "loads", "opens", "enters", "leaves", "withins", "downs", "ups"]`)
	w.put(name, resource.NAME, 5, `["", "aspit", "bspit"]`)
}

type bundle struct {
	card, plst, blst, hspt, slst string
}

func (w *world) card(stack string, id int, b bundle) {
	def := func(v string) string {
		if v == "" {
			return `[{}]`
		}
		return v
	}
	if b.card == "" {
		b.card = countingCard()
	}
	w.put(stack, resource.CARD, id, b.card)
	w.put(stack, resource.PLST, id, def(b.plst))
	w.put(stack, resource.BLST, id, def(b.blst))
	w.put(stack, resource.HSPT, id, def(b.hspt))
	w.put(stack, resource.SLST, id, def(b.slst))
}

func inc(v int) string {
	return fmt.Sprintf(`{"name":"increment","arguments":[%d,1]}`, v)
}

func countingCard(open ...string) string {
	seq := append([]string{inc(varOpens)}, open...)
	return fmt.Sprintf(`{"name":1,"zip_mode":false,"script":{"close-card":[%s],"load-card":[%s],"open-card":[%s]}}`,
		inc(varCloses), inc(varLoads), strings.Join(seq, ","))
}

func hotspotJSON(blst int, r image.Rectangle, cursor int, zip bool, handlers string) string {
	return fmt.Sprintf(`{"blst_id":%d,"name":1,"left":%d,"top":%d,"right":%d,"bottom":%d,"cursor":%d,"zip_mode":%v,"script":{%s}}`,
		blst, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, cursor, zip, handlers)
}

type fakeMixer struct {
	mu     sync.Mutex
	mixes  []audio.Mix
	clears int
	played int
}

func (m *fakeMixer) Apply(mix audio.Mix) {
	m.mu.Lock()
	m.mixes = append(m.mixes, mix)
	m.mu.Unlock()
}

func (m *fakeMixer) ClearBackground() {
	m.mu.Lock()
	m.clears++
	m.mu.Unlock()
}

func (m *fakeMixer) Play(snd *audio.Sound) <-chan struct{} {
	m.mu.Lock()
	m.played++
	m.mu.Unlock()
	ch := make(chan struct{})
	close(ch)
	return ch
}

func newTestSession(w *world, clock utils.Clock) (*Session, *fakeMixer, *screen.Compositor) {
	hub := status.NewHub()
	l := loader.New(cache.New(300), w, hub, loader.Options{})
	comp := screen.New(8, 8, nil, utils.NewInstantClock(time.Unix(0, 0)))
	m := &fakeMixer{}
	return NewSession(l, comp, m, Options{Clock: clock, Hub: hub}), m, comp
}

func instant() utils.Clock {
	return utils.NewInstantClock(time.Unix(0, 0))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestGotoSameCardReloads(t *testing.T) {
	w := newWorld()
	w.stack("aspit")
	w.card("aspit", 1, bundle{})
	s, _, _ := newTestSession(w, instant())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.GotoCard(ctx, "aspit", 1); err != nil {
			t.Fatal(err)
		}
	}
	var counts = []struct {
		name     string
		expected int
	}{
		{"closes", 1},
		{"loads", 2},
		{"opens", 2},
	}
	for _, c := range counts {
		if v := s.Variable(c.name); v != c.expected {
			t.Errorf("Variable(%q)=%d; expected %d", c.name, v, c.expected)
		}
	}
}

func TestFreshGotoSwitchesStackFirst(t *testing.T) {
	w := newWorld()
	w.stack("aspit")
	w.card("aspit", 1, bundle{card: countingCard(`{"name":"pause","arguments":[1000]}`)})
	clock := utils.NewManualClock(time.Unix(0, 0))
	s, m, _ := newTestSession(w, clock)

	done := make(chan error, 1)
	go func() { done <- s.GotoCard(context.Background(), "aspit", 1) }()

	waitFor(t, "open-card pause", func() bool { return clock.Pending() == 1 })
	if loc := s.Location(); loc != (Location{}) {
		t.Errorf("location %+v published before open-card completed", loc)
	}
	clock.Advance(time.Second)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if loc := s.Location(); loc != (Location{Stack: "aspit", Card: 1}) {
		t.Errorf("location=%+v; expected aspit 1", loc)
	}

	fetched := w.fetches()
	if len(fetched) < 6 {
		t.Fatalf("fetched %v", fetched)
	}
	for i, k := range fetched[:5] {
		if k.Type != resource.NAME {
			t.Errorf("fetch %d=%v; expected name tables first", i, k)
		}
	}
	if fetched[5].Type == resource.NAME {
		t.Errorf("fetch 5=%v; expected the card bundle", fetched[5])
	}
	if m.clears != 1 {
		t.Errorf("background cleared %d times; expected 1", m.clears)
	}
}

func TestHotspotEnablementRecompute(t *testing.T) {
	w := newWorld()
	w.stack("aspit")
	r := image.Rect(0, 0, 4, 4)
	w.card("aspit", 1, bundle{
		blst: `[{}, {"enabled":true,"hotspot_id":1}, {"enabled":false,"hotspot_id":2}, {"enabled":true,"hotspot_id":4}]`,
		hspt: "[{}," + strings.Join([]string{
			hotspotJSON(1, r, 0, false, ""),
			hotspotJSON(2, r, 0, false, ""),
			hotspotJSON(3, r, 0, false, ""),
			hotspotJSON(4, r, 0, true, ""),
		}, ",") + "]",
	})
	s, _, _ := newTestSession(w, instant())
	ctx := context.Background()
	if err := s.GotoCard(ctx, "aspit", 1); err != nil {
		t.Fatal(err)
	}

	expected := []bool{true, false, true, false}
	check := func(when string) {
		hs := s.State().Hotspots
		if len(hs) != len(expected) {
			t.Fatalf("%s: %d hotspots; expected %d", when, len(hs), len(expected))
		}
		for i, h := range hs {
			if h.Enabled != expected[i] {
				t.Errorf("%s: hotspot %d enabled=%v; expected %v", when, i+1, h.Enabled, expected[i])
			}
		}
	}
	check("after goto")

	// flags are recomputed, not carried over
	s.Execute(ctx, &script.Instruction{Op: script.OpDisableHotspot, Name: "disable-hotspot", Arguments: []int{1}})
	s.Execute(ctx, &script.Instruction{Op: script.OpEnableHotspot, Name: "enable-hotspot", Arguments: []int{4}})
	if err := s.GotoCard(ctx, "aspit", 1); err != nil {
		t.Fatal(err)
	}
	check("after reload")
}

func TestActivateBLST(t *testing.T) {
	w := newWorld()
	w.stack("aspit")
	r := image.Rect(0, 0, 4, 4)
	w.card("aspit", 1, bundle{
		blst: `[{}, {"enabled":true,"hotspot_id":7}, {"enabled":false,"hotspot_id":7}]`,
		hspt: "[{}," + hotspotJSON(7, r, 0, false, "") + "," + hotspotJSON(7, r, 0, true, "") + "]",
	})
	s, _, _ := newTestSession(w, instant())
	ctx := context.Background()
	if err := s.GotoCard(ctx, "aspit", 1); err != nil {
		t.Fatal(err)
	}

	var blstTests = []struct {
		record  int
		enabled []bool
	}{
		{2, []bool{false, false}},
		{1, []bool{true, false}},
		{9, []bool{true, false}},
	}
	for _, test := range blstTests {
		ins := script.Command("activate-blst", test.record)
		if err := s.Execute(ctx, &ins); err != nil {
			t.Fatal(err)
		}
		for i, h := range s.State().Hotspots {
			if h.Enabled != test.enabled[i] {
				t.Errorf("activate-blst %d: hotspot %d enabled=%v; expected %v", test.record, i+1, h.Enabled, test.enabled[i])
			}
		}
	}
}

func TestSetVarThroughNameTable(t *testing.T) {
	w := newWorld()
	w.stack("aspit")
	w.card("aspit", 1, bundle{card: countingCard(fmt.Sprintf(`{"name":"set-var","arguments":[%d,7]}`, varGate))})
	s, _, _ := newTestSession(w, instant())
	if err := s.GotoCard(context.Background(), "aspit", 1); err != nil {
		t.Fatal(err)
	}
	if v := s.Variable("tgatestate"); v != 7 {
		t.Errorf("tgatestate=%d; expected 7", v)
	}
}

func TestBranchReadsSessionVariables(t *testing.T) {
	w := newWorld()
	w.stack("aspit")
	w.card("aspit", 1, bundle{})
	s, _, _ := newTestSession(w, instant())
	ctx := context.Background()
	if err := s.GotoCard(ctx, "aspit", 1); err != nil {
		t.Fatal(err)
	}

	seq := []script.Instruction{
		script.Branch(varGate, map[int][]script.Instruction{
			1:                   {script.Command("set-var", varEnters, 10)},
			config.WildcardCase: {script.Command("set-var", varEnters, 20)},
		}),
		script.Command("increment", varEnters, 1),
	}
	var branchTests = []struct {
		gate     int
		expected int
	}{
		{1, 11},
		{5, 21},
	}
	for _, test := range branchTests {
		s.SetVariable("tgatestate", test.gate)
		if err := s.interp.Run(ctx, seq); err != nil {
			t.Fatal(err)
		}
		if v := s.Variable("enters"); v != test.expected {
			t.Errorf("gate %d: enters=%d; expected %d", test.gate, v, test.expected)
		}
	}
}

func TestGotoStackMissingMapping(t *testing.T) {
	w := newWorld()
	w.stack("aspit")
	w.stack("bspit")
	w.put("bspit", resource.RMAP, 1, `[0, 5]`)
	r := image.Rect(0, 0, 8, 8)
	w.card("aspit", 1, bundle{
		hspt: "[{}," + hotspotJSON(1, r, 0, false, `"mouse-down":[{"name":"goto-stack","arguments":[2,0,99]},`+inc(varDowns)+`]`) + "]",
	})
	s, _, _ := newTestSession(w, instant())
	ctx := context.Background()
	if err := s.GotoCard(ctx, "aspit", 1); err != nil {
		t.Fatal(err)
	}

	err := s.MouseDown(ctx, image.Pt(1, 1))
	if !errors.Is(err, ErrMissingMapping) {
		t.Fatalf("err=%v; expected missing mapping", err)
	}
	if v := s.Variable("downs"); v != 0 {
		t.Error("instruction after failed goto-stack ran")
	}
	st := s.State()
	if st.Location != (Location{Stack: "aspit", Card: 1}) || st.Installed != st.Location {
		t.Errorf("state=%+v; expected still at aspit 1", st.Location)
	}
}

func TestGotoStackResolvesMapCode(t *testing.T) {
	w := newWorld()
	w.stack("aspit")
	w.stack("bspit")
	w.put("bspit", resource.RMAP, 1, fmt.Sprintf(`[0, 5, %d]`, 2<<16|5))
	w.card("aspit", 1, bundle{})
	w.card("bspit", 2, bundle{})
	s, m, _ := newTestSession(w, instant())
	ctx := context.Background()
	if err := s.GotoCard(ctx, "aspit", 1); err != nil {
		t.Fatal(err)
	}

	ins := script.Command("goto-stack", 2, 2, 5)
	if err := s.Execute(ctx, &ins); err != nil {
		t.Fatal(err)
	}
	if loc := s.Location(); loc != (Location{Stack: "bspit", Card: 2}) {
		t.Errorf("location=%+v; expected bspit 2", loc)
	}
	if m.clears != 2 {
		t.Errorf("background cleared %d times; expected 2", m.clears)
	}
	if s.CurrentStack() != "bspit" {
		t.Errorf("stack context=%q", s.CurrentStack())
	}
}

func TestFailedGotoKeepsCurrentCard(t *testing.T) {
	w := newWorld()
	w.stack("aspit")
	w.card("aspit", 1, bundle{})
	w.put("aspit", resource.CARD, 2, countingCard())
	s, _, comp := newTestSession(w, instant())
	ctx := context.Background()
	if err := s.GotoCard(ctx, "aspit", 1); err != nil {
		t.Fatal(err)
	}

	err := s.GotoCard(ctx, "aspit", 2)
	if !errors.Is(err, loader.ErrLoadFailure) {
		t.Fatalf("err=%v; expected load failure", err)
	}
	st := s.State()
	if st.Installed != (Location{Stack: "aspit", Card: 1}) {
		t.Errorf("installed=%+v; expected aspit 1", st.Installed)
	}
	if comp.Suppressed() {
		t.Error("screen left suppressed after failed goto")
	}
}

func TestUnknownCommandIsSkipped(t *testing.T) {
	w := newWorld()
	w.stack("aspit")
	w.card("aspit", 1, bundle{card: countingCard(
		`{"name":"inline-slst","arguments":[1]}`,
		`{"name":42,"arguments":[]}`,
		`{"name":"call","arguments":[2,1,5]}`,
		fmt.Sprintf(`{"name":"set-var","arguments":[%d,3]}`, varGate),
	)})
	s, _, _ := newTestSession(w, instant())
	if err := s.GotoCard(context.Background(), "aspit", 1); err != nil {
		t.Fatal(err)
	}
	if v := s.Variable("tgatestate"); v != 3 {
		t.Errorf("tgatestate=%d; expected the sequence to continue", v)
	}
}

func TestExternalSetupComplete(t *testing.T) {
	w := newWorld()
	w.stack("aspit")
	w.card("aspit", 1, bundle{})
	w.card("aspit", 2, bundle{card: countingCard(`{"name":"call","arguments":[1,0]}`)})
	s, _, _ := newTestSession(w, instant())
	ctx := context.Background()
	if err := s.GotoCard(ctx, "aspit", 2); err != nil {
		t.Fatal(err)
	}
	if loc := s.Location(); loc != (Location{Stack: "aspit", Card: 1}) {
		t.Errorf("location=%+v; expected aspit 1", loc)
	}
	if v := s.Variable("opens"); v != 2 {
		t.Errorf("opens=%d; expected 2", v)
	}
}

func pngBytes(t *testing.T, w, h int, c color.RGBA) string {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func wavBytes(t *testing.T) string {
	p := filepath.Join(t.TempDir(), "3.wav")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	format := beep.Format{SampleRate: 22050, NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, beep.Silence(100), format); err != nil {
		t.Fatal(err)
	}
	f.Close()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestDefaultPictureAndSoundSet(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	w := newWorld()
	w.stack("aspit")
	w.card("aspit", 1, bundle{
		plst: `[{}, {"bitmap":10,"left":0,"top":0,"right":2,"bottom":2}]`,
		slst: `[{}, {"sounds":[{"sound_id":3,"volume":256,"balance":127}],"fade_flags":2,"looping":true,"global_volume":128}]`,
	})
	w.put("aspit", resource.TBMP, 10, pngBytes(t, 2, 2, red))
	w.put("aspit", resource.TWAV, 3, wavBytes(t))
	s, m, comp := newTestSession(w, instant())
	ctx := context.Background()
	if err := s.GotoCard(ctx, "aspit", 1); err != nil {
		t.Fatal(err)
	}

	if got := comp.Snapshot().RGBAAt(1, 1); got != red {
		t.Errorf("pixel=%v; expected the default picture", got)
	}
	if len(m.mixes) != 1 {
		t.Fatalf("mixes=%d; expected 1", len(m.mixes))
	}
	mix := m.mixes[0]
	if !mix.FadeIn || mix.FadeOut || !mix.Loop || len(mix.Tracks) != 1 {
		t.Fatalf("mix=%+v", mix)
	}
	if tr := mix.Tracks[0]; tr.Gain != 0.5 || tr.Pan != 1 || tr.Sound == nil {
		t.Errorf("track=%+v; expected gain 0.5 pan 1", tr)
	}

	// activating the active set again changes nothing
	ins := script.Command("activate-slst", 1)
	if err := s.Execute(ctx, &ins); err != nil {
		t.Fatal(err)
	}
	if len(m.mixes) != 1 {
		t.Errorf("mixes=%d after re-activation; expected 1", len(m.mixes))
	}

	ins = script.Command("activate-slst", 4)
	if err := s.Execute(ctx, &ins); err != nil {
		t.Fatal(err)
	}
	if last := m.mixes[len(m.mixes)-1]; len(last.Tracks) != 0 || !last.FadeOut {
		t.Errorf("missing set mix=%+v; expected silence fading out", last)
	}
}

func loadCardScript(handler string) string {
	return fmt.Sprintf(`{"name":1,"zip_mode":false,"script":{"load-card":[%s]}}`, handler)
}

func pictureList(bitmap int) string {
	return fmt.Sprintf(`[{}, {"bitmap":%d,"left":0,"top":0,"right":2,"bottom":2}]`, bitmap)
}

var nestedFailureTests = []struct {
	name      string
	installed int
	pixel     color.RGBA
}{
	// card 2 jumps to a card that does not exist
	{"missing target", 2, color.RGBA{0, 255, 0, 255}},
	// card 2 jumps to card 3, whose own load-card fails
	{"failing target", 3, color.RGBA{0, 0, 255, 255}},
}

func TestNestedGotoFailureFlipsInstalledCard(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	for _, tt := range nestedFailureTests {
		w := newWorld()
		w.stack("aspit")
		w.card("aspit", 1, bundle{plst: pictureList(10)})
		w.put("aspit", resource.TBMP, 10, pngBytes(t, 2, 2, red))
		w.put("aspit", resource.TBMP, 20, pngBytes(t, 2, 2, color.RGBA{0, 255, 0, 255}))
		w.put("aspit", resource.TBMP, 30, pngBytes(t, 2, 2, color.RGBA{0, 0, 255, 255}))
		if tt.installed == 2 {
			w.card("aspit", 2, bundle{card: loadCardScript(`{"name":"goto-card","arguments":[9]}`), plst: pictureList(20)})
		} else {
			w.card("aspit", 2, bundle{card: loadCardScript(`{"name":"goto-card","arguments":[3]}`), plst: pictureList(20)})
			w.card("aspit", 3, bundle{card: loadCardScript(`{"name":"play-wav","arguments":[99]}`), plst: pictureList(30)})
		}
		s, _, comp := newTestSession(w, instant())
		ctx := context.Background()
		if err := s.GotoCard(ctx, "aspit", 1); err != nil {
			t.Fatal(err)
		}

		if err := s.GotoCard(ctx, "aspit", 2); !errors.Is(err, loader.ErrLoadFailure) {
			t.Errorf("%s: err=%v; expected load failure", tt.name, err)
		}
		if st := s.State(); st.Installed.Card != tt.installed {
			t.Errorf("%s: installed=%+v; expected card %d", tt.name, st.Installed, tt.installed)
		}
		if comp.Suppressed() {
			t.Errorf("%s: screen left suppressed", tt.name)
		}
		if got := comp.Snapshot().RGBAAt(1, 1); got != tt.pixel {
			t.Errorf("%s: pixel=%v; expected %v", tt.name, got, tt.pixel)
		}
	}
}

func TestPlayWavWaitsForSound(t *testing.T) {
	w := newWorld()
	w.stack("aspit")
	w.card("aspit", 1, bundle{card: countingCard(`{"name":"play-wav","arguments":[3,256,0]}`)})
	w.put("aspit", resource.TWAV, 3, wavBytes(t))
	s, m, _ := newTestSession(w, instant())
	if err := s.GotoCard(context.Background(), "aspit", 1); err != nil {
		t.Fatal(err)
	}
	if m.played != 1 {
		t.Errorf("played=%d; expected 1", m.played)
	}
}

func TestMouseMoveHandlers(t *testing.T) {
	w := newWorld()
	w.stack("aspit")
	handlers := fmt.Sprintf(`"mouse-enter":[%s],"mouse-leave":[%s],"mouse-within":[%s]`,
		inc(varEnters), inc(varLeaves), inc(varWithins))
	w.card("aspit", 1, bundle{
		hspt: "[{}," + hotspotJSON(1, image.Rect(0, 0, 4, 4), 3001, false, handlers) + "," +
			hotspotJSON(2, image.Rect(2, 2, 6, 6), 0, false, "") + "]",
	})
	s, _, _ := newTestSession(w, instant())
	ctx := context.Background()
	if err := s.GotoCard(ctx, "aspit", 1); err != nil {
		t.Fatal(err)
	}

	var moveTests = []struct {
		p       image.Point
		current int
		cursor  int
		enters  int
		leaves  int
		withins int
	}{
		{image.Pt(7, 7), 0, config.DefaultCursor, 0, 0, 0},
		{image.Pt(1, 1), 1, 3001, 1, 0, 1},
		{image.Pt(1, 2), 1, 3001, 1, 0, 2},
		{image.Pt(3, 3), 2, config.DefaultCursor, 1, 1, 2},
		{image.Pt(1, 1), 1, 3001, 2, 1, 3},
		{image.Pt(7, 7), 0, config.DefaultCursor, 2, 2, 3},
	}
	for _, test := range moveTests {
		if err := s.MouseMove(ctx, test.p); err != nil {
			t.Fatal(err)
		}
		current := 0
		for _, h := range s.State().Hotspots {
			if h.Current {
				current = h.Index
			}
		}
		if current != test.current {
			t.Errorf("move %v: current=%d; expected %d", test.p, current, test.current)
		}
		if c := s.Cursor(); c != test.cursor {
			t.Errorf("move %v: cursor=%d; expected %d", test.p, c, test.cursor)
		}
		got := []int{s.Variable("enters"), s.Variable("leaves"), s.Variable("withins")}
		if got[0] != test.enters || got[1] != test.leaves || got[2] != test.withins {
			t.Errorf("move %v: enter/leave/within=%v; expected %d %d %d", test.p, got, test.enters, test.leaves, test.withins)
		}
	}
}

func TestPlayerDropsPointerEventsWhileBusy(t *testing.T) {
	w := newWorld()
	w.stack("aspit")
	handlers := fmt.Sprintf(`"mouse-down":[{"name":"pause","arguments":[500]},%s],"mouse-up":[%s]`, inc(varDowns), inc(varUps))
	w.card("aspit", 1, bundle{hspt: "[{}," + hotspotJSON(1, image.Rect(0, 0, 8, 8), 0, false, handlers) + "]"})
	clock := utils.NewManualClock(time.Unix(0, 0))
	s, _, _ := newTestSession(w, clock)
	p := NewPlayer(s, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	if err := p.Goto(ctx, "aspit", 1); err != nil {
		t.Fatal(err)
	}
	if !p.Post(Event{Kind: EventDown, Point: image.Pt(1, 1)}) {
		t.Fatal("mouse-down dropped")
	}
	waitFor(t, "grace and pause timers", func() bool { return clock.Pending() == 2 })
	if !s.PointerBusy() {
		t.Fatal("not busy during mouse-down")
	}
	if p.Post(Event{Kind: EventUp, Point: image.Pt(1, 1)}) {
		t.Error("mouse-up accepted while mouse-down runs")
	}
	if s.Cursor() != config.DefaultCursor {
		t.Errorf("cursor=%d before grace delay", s.Cursor())
	}

	clock.Advance(config.MouseDownGrace)
	waitFor(t, "busy cursor", func() bool { return s.Cursor() == config.BusyCursor })

	clock.Advance(400 * time.Millisecond)
	waitFor(t, "handler end", func() bool { return !s.PointerBusy() })
	if s.Cursor() != config.DefaultCursor {
		t.Errorf("cursor=%d; expected restored default", s.Cursor())
	}
	if v := s.Variable("downs"); v != 1 {
		t.Errorf("downs=%d; expected 1", v)
	}
	if v := s.Variable("ups"); v != 0 {
		t.Errorf("ups=%d; expected the dropped event not to run", v)
	}
}

func TestQuickMouseDownWaitsForGrace(t *testing.T) {
	w := newWorld()
	w.stack("aspit")
	w.card("aspit", 1, bundle{hspt: "[{}," + hotspotJSON(1, image.Rect(0, 0, 8, 8), 0, false, `"mouse-down":[`+inc(varDowns)+`]`) + "]"})
	clock := utils.NewManualClock(time.Unix(0, 0))
	s, _, _ := newTestSession(w, clock)
	ctx := context.Background()
	if err := s.GotoCard(ctx, "aspit", 1); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- s.MouseDown(ctx, image.Pt(1, 1)) }()
	waitFor(t, "handler", func() bool { return s.Variable("downs") == 1 })
	if !s.PointerBusy() {
		t.Error("input resumed before the grace delay")
	}
	waitFor(t, "grace timer", func() bool { return clock.Pending() == 1 })
	clock.Advance(config.MouseDownGrace)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if s.PointerBusy() || s.Cursor() != config.DefaultCursor {
		t.Errorf("busy=%v cursor=%d after quick handler", s.PointerBusy(), s.Cursor())
	}
}
