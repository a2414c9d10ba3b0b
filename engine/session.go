package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

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

// Mixer is the background and one-shot audio output of a session.
type Mixer interface {
	Apply(mix audio.Mix)
	ClearBackground()
	Play(snd *audio.Sound) <-chan struct{}
}

// StackContext holds the name tables of the stack being visited.
type StackContext struct {
	Name          string
	CardNames     resource.NameTable
	HotspotNames  resource.NameTable
	CommandNames  resource.NameTable
	VariableNames resource.NameTable
	StackNames    resource.NameTable
}

type Hotspot struct {
	resource.Hotspot
	Enabled bool
}

type cardState struct {
	id        int
	card      *resource.Card
	pictures  resource.PictureList
	pictureOn map[int]bool
	buttons   resource.ButtonList
	hotspots  []Hotspot
	sounds    resource.SoundSetList
	soundSet  int
}

type Location struct {
	Stack string `json:"stack"`
	Card  int    `json:"card"`
}

type Options struct {
	Clock utils.Clock
	Hub   *status.Hub
}

// Session is the state of one player: where it is, what is enabled, and
// the variables. Every mutating method must be called from a single
// goroutine (the Player); readers on other goroutines use State,
// CurrentStack and StackName.
type Session struct {
	loader *loader.Loader
	screen *screen.Compositor
	mixer  Mixer
	clock  utils.Clock
	hub    *status.Hub
	interp *script.Interpreter

	mu         sync.RWMutex
	stack      *StackContext
	card       *cardState
	current    int
	vars       map[string]int
	location   Location
	generation uint64

	cursor cursorState
	busy   atomic.Bool
}

func NewSession(l *loader.Loader, c *screen.Compositor, m Mixer, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = utils.SystemClock{}
	}
	if opts.Hub == nil {
		opts.Hub = status.Default()
	}
	s := &Session{
		loader:  l,
		screen:  c,
		mixer:   m,
		clock:   opts.Clock,
		hub:     opts.Hub,
		current: -1,
		vars:    make(map[string]int),
	}
	s.cursor.Set(config.DefaultCursor)
	s.interp = script.NewInterpreter(s)
	l.SetStackView(s)
	return s
}

// CurrentStack is the stack whose name tables are installed.
func (s *Session) CurrentStack() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stack == nil {
		return ""
	}
	return s.stack.Name
}

func (s *Session) StackName(id int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stack == nil {
		return "", false
	}
	return s.stack.StackNames.Lookup(id)
}

// Location is the last card whose open-card handler completed.
func (s *Session) Location() Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location
}

func (s *Session) Variable(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vars[name]
}

func (s *Session) SetVariable(name string, v int) {
	s.mu.Lock()
	s.vars[name] = v
	s.mu.Unlock()
}

func (s *Session) variableName(id int) string {
	if s.stack != nil {
		if name, ok := s.stack.VariableNames.Lookup(id); ok {
			return name
		}
	}
	return fmt.Sprintf("var%d", id)
}

// Value implements script.Host.
func (s *Session) Value(variable int) int {
	return s.Variable(s.variableName(variable))
}

func (s *Session) stackName() string {
	if s.stack == nil {
		return ""
	}
	return s.stack.Name
}

func (s *Session) key(t resource.Type, id int) resource.Key {
	return resource.Key{Stack: s.stackName(), Type: t, ID: id}
}

func (s *Session) runHandler(ctx context.Context, sc script.Script, ev script.Event) error {
	return s.interp.RunHandler(ctx, sc, ev)
}

func (s *Session) cardHandler(ctx context.Context, ev script.Event) error {
	if s.card == nil {
		return nil
	}
	return s.runHandler(ctx, s.card.card.Script, ev)
}

func loadStackContext(ctx context.Context, l *loader.Loader, stack string) (*StackContext, error) {
	keys := make([]resource.Key, 0, resource.StackNames)
	futures := make([]*cache.Future, 0, resource.StackNames)
	for id := resource.CardNames; id <= resource.StackNames; id++ {
		k := resource.Key{Stack: stack, Type: resource.NAME, ID: id}
		keys = append(keys, k)
		futures = append(futures, l.Load(k))
	}
	tables := make([]resource.NameTable, len(keys))
	for i := range keys {
		t, err := loader.Await[resource.NameTable](ctx, keys[i], futures[i])
		if err != nil {
			return nil, err
		}
		tables[i] = t
	}
	return &StackContext{
		Name:          stack,
		CardNames:     tables[0],
		HotspotNames:  tables[1],
		CommandNames:  tables[2],
		VariableNames: tables[3],
		StackNames:    tables[4],
	}, nil
}

func loadCardState(ctx context.Context, l *loader.Loader, stack string, id int) (*cardState, error) {
	key := func(t resource.Type) resource.Key { return resource.Key{Stack: stack, Type: t, ID: id} }
	fCard := l.Load(key(resource.CARD))
	fPlst := l.Load(key(resource.PLST))
	fBlst := l.Load(key(resource.BLST))
	fHspt := l.Load(key(resource.HSPT))
	fSlst := l.Load(key(resource.SLST))

	cs := &cardState{id: id, pictureOn: make(map[int]bool)}
	var err error
	if cs.card, err = loader.Await[*resource.Card](ctx, key(resource.CARD), fCard); err != nil {
		return nil, err
	}
	if cs.pictures, err = loader.Await[resource.PictureList](ctx, key(resource.PLST), fPlst); err != nil {
		return nil, err
	}
	if cs.buttons, err = loader.Await[resource.ButtonList](ctx, key(resource.BLST), fBlst); err != nil {
		return nil, err
	}
	hspt, err := loader.Await[resource.HotspotList](ctx, key(resource.HSPT), fHspt)
	if err != nil {
		return nil, err
	}
	if cs.sounds, err = loader.Await[resource.SoundSetList](ctx, key(resource.SLST), fSlst); err != nil {
		return nil, err
	}
	for _, h := range hspt.Entries() {
		cs.hotspots = append(cs.hotspots, Hotspot{Hotspot: h})
	}
	return cs, nil
}

// GotoCard moves the session to card id of stack. Going to the current
// card is a full reload. On failure the previous card stays current.
func (s *Session) GotoCard(ctx context.Context, stack string, id int) error {
	log.Printf("[engine] goto %s card %d", stack, id)
	// a nested goto leaves suppression to whoever started it
	owner := s.screen.Disable()
	installed, err := s.gotoCard(ctx, stack, id)
	if err != nil {
		if owner {
			if installed {
				s.screen.Enable(ctx)
			} else {
				s.screen.Discard()
			}
		}
		return errors.Wrapf(err, "goto %s card %d", stack, id)
	}
	return nil
}

func (s *Session) gotoCard(ctx context.Context, stack string, id int) (installed bool, err error) {
	if err := s.cardHandler(ctx, script.CloseCard); err != nil {
		return false, err
	}

	var newStack *StackContext
	if s.stack == nil || s.stack.Name != stack {
		if newStack, err = loadStackContext(ctx, s.loader, stack); err != nil {
			return false, err
		}
	}

	cs, err := loadCardState(ctx, s.loader, stack, id)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if newStack != nil {
		s.stack = newStack
	}
	s.card = cs
	s.current = -1
	s.generation++
	gen := s.generation
	s.recomputeEnablement()
	s.mu.Unlock()
	if newStack != nil {
		s.mixer.ClearBackground()
	}
	s.cursor.Set(config.DefaultCursor)

	if err := s.activatePLST(ctx, 1); err != nil {
		return true, err
	}
	if err := s.activateSLST(ctx, 1); err != nil {
		return true, err
	}
	if err := s.cardHandler(ctx, script.LoadCard); err != nil {
		return true, err
	}
	if s.superseded(gen) {
		return true, nil
	}
	if err := s.enableScreenUpdate(ctx); err != nil {
		return true, err
	}
	if err := s.cardHandler(ctx, script.OpenCard); err != nil {
		return true, err
	}

	s.mu.Lock()
	if s.generation == gen {
		s.location = Location{Stack: stack, Card: id}
	}
	s.mu.Unlock()
	return true, nil
}

// superseded reports whether a nested navigation replaced the card
// installed at generation gen.
func (s *Session) superseded(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation != gen
}

// recomputeEnablement runs with s.mu held.
func (s *Session) recomputeEnablement() {
	hs := s.card.hotspots
	for i := range hs {
		hs[i].Enabled = !bool(hs[i].ZipMode)
	}
	if len(s.card.buttons) > 1 {
		for _, b := range s.card.buttons[1:] {
			s.setHotspots(b.HotspotID, bool(b.Enabled))
		}
	}
}

// setHotspots runs with s.mu held.
func (s *Session) setHotspots(blstID int, enabled bool) {
	hs := s.card.hotspots
	for i := range hs {
		if hs[i].BLSTID == blstID && !bool(hs[i].ZipMode) {
			hs[i].Enabled = enabled
		}
	}
}

func (s *Session) activateBLST(i int) {
	if s.card == nil {
		return
	}
	b, ok := s.card.buttons.Get(i)
	if !ok {
		log.Printf("[engine] %s card %d has no BLST record %d", s.stackName(), s.card.id, i)
		return
	}
	s.mu.Lock()
	s.setHotspots(b.HotspotID, bool(b.Enabled))
	s.mu.Unlock()
}

func (s *Session) activatePLST(ctx context.Context, i int) error {
	if s.card == nil {
		return nil
	}
	p, ok := s.card.pictures.Get(i)
	if !ok || s.card.pictureOn[i] {
		return nil
	}
	img, err := s.loader.Bitmap(ctx, s.stackName(), p.Bitmap)
	if err != nil {
		return err
	}
	if err := s.screen.Draw(ctx, img, p.Rect.Image()); err != nil {
		return err
	}
	s.card.pictureOn[i] = true
	return nil
}

func (s *Session) activateSLST(ctx context.Context, i int) error {
	if s.card == nil || s.card.soundSet == i {
		return nil
	}
	mix := audio.Mix{FadeOut: true}
	if set, ok := s.card.sounds.Get(i); ok {
		mix = audio.Mix{
			FadeIn:  set.FadeFlags&resource.FadeIn != 0,
			FadeOut: set.FadeFlags&resource.FadeOut != 0,
			Loop:    bool(set.Looping),
		}
		futures := make([]*cache.Future, len(set.Sounds))
		for n, ref := range set.Sounds {
			futures[n] = s.loader.Load(s.key(resource.TWAV, ref.SoundID))
		}
		for n, ref := range set.Sounds {
			k := s.key(resource.TWAV, ref.SoundID)
			snd, err := loader.Await[*audio.Sound](ctx, k, futures[n])
			if err != nil {
				return err
			}
			mix.Tracks = append(mix.Tracks, audio.Track{
				Key:   k,
				Sound: snd,
				Gain:  audio.TrackGain(ref.Volume, set.Volume),
				Pan:   audio.BalancePan(ref.Balance),
			})
		}
	}
	s.mixer.Apply(mix)
	s.card.soundSet = i
	return nil
}

func (s *Session) enableScreenUpdate(ctx context.Context) error {
	if err := s.cardHandler(ctx, script.DisplayUpdate); err != nil {
		return err
	}
	return s.screen.Enable(ctx)
}
