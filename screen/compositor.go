package screen

import (
	"context"
	"image"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/mogaika/moiety/config"
	"github.com/mogaika/moiety/utils"
)

// Display receives every committed frame. The frame is only valid during
// the call.
type Display interface {
	Present(frame *image.RGBA)
}

// Compositor owns the visible surface and the offscreen buffer drawing is
// redirected to while screen updates are suppressed.
type Compositor struct {
	mu       sync.Mutex
	clock    utils.Clock
	display  Display
	duration time.Duration
	interval time.Duration

	visible    *image.RGBA
	offscreen  *image.RGBA
	suppressed bool

	transition    int
	hasTransition bool
}

func New(width, height int, display Display, clock utils.Clock) *Compositor {
	r := image.Rect(0, 0, width, height)
	return &Compositor{
		clock:     clock,
		display:   display,
		duration:  config.TransitionDuration,
		interval:  config.FrameInterval,
		visible:   image.NewRGBA(r),
		offscreen: image.NewRGBA(r),
	}
}

func (c *Compositor) Bounds() image.Rectangle {
	return c.visible.Bounds()
}

func (c *Compositor) Suppressed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suppressed
}

// Disable snapshots the visible surface into the offscreen buffer and
// redirects drawing there. Disabling twice keeps the first snapshot. It
// reports whether this call started the suppression.
func (c *Compositor) Disable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.suppressed {
		return false
	}
	draw.Copy(c.offscreen, image.Point{}, c.visible, c.visible.Bounds(), draw.Src, nil)
	c.suppressed = true
	return true
}

// Enable commits the offscreen buffer. It does nothing when updates are
// not suppressed.
func (c *Compositor) Enable(ctx context.Context) error {
	c.mu.Lock()
	if !c.suppressed {
		c.mu.Unlock()
		return nil
	}
	c.suppressed = false
	c.mu.Unlock()
	return c.Flip(ctx)
}

// Discard drops whatever was drawn offscreen and resumes direct drawing.
func (c *Compositor) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suppressed = false
	c.hasTransition = false
}

func (c *Compositor) ScheduleTransition(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transition = code
	c.hasTransition = true
}

func (c *Compositor) PendingTransition() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transition, c.hasTransition
}

// Flip copies the offscreen buffer to the visible surface, animating the
// scheduled transition if there is one. The last frame presented is always
// exactly the offscreen content.
func (c *Compositor) Flip(ctx context.Context) error {
	c.mu.Lock()
	code, animate := c.transition, c.hasTransition
	c.hasTransition = false
	old := image.NewRGBA(c.visible.Bounds())
	draw.Copy(old, image.Point{}, c.visible, c.visible.Bounds(), draw.Src, nil)
	c.mu.Unlock()

	var err error
	if animate {
		err = c.animate(ctx, old, code)
	}

	c.mu.Lock()
	draw.Copy(c.visible, image.Point{}, c.offscreen, c.offscreen.Bounds(), draw.Src, nil)
	c.present()
	c.mu.Unlock()
	return err
}

func (c *Compositor) animate(ctx context.Context, old *image.RGBA, code int) error {
	start := c.clock.Now()
	for {
		p := float64(c.clock.Now().Sub(start)) / float64(c.duration)
		if p >= 1 {
			return nil
		}
		c.mu.Lock()
		renderTransition(c.visible, old, c.offscreen, code, p)
		c.present()
		c.mu.Unlock()

		select {
		case <-c.clock.After(c.interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Draw puts src into the rectangle dst, scaling when sizes differ. While
// updates are suppressed it lands offscreen; with a transition pending it
// lands offscreen and is flipped in at once; otherwise it is drawn straight
// to the visible surface.
func (c *Compositor) Draw(ctx context.Context, src image.Image, dst image.Rectangle) error {
	c.mu.Lock()
	switch {
	case c.suppressed:
		put(c.offscreen, src, dst)
		c.mu.Unlock()
		return nil
	case c.hasTransition:
		draw.Copy(c.offscreen, image.Point{}, c.visible, c.visible.Bounds(), draw.Src, nil)
		put(c.offscreen, src, dst)
		c.mu.Unlock()
		return c.Flip(ctx)
	default:
		put(c.visible, src, dst)
		c.present()
		c.mu.Unlock()
		return nil
	}
}

func put(target *image.RGBA, src image.Image, dst image.Rectangle) {
	sb := src.Bounds()
	if sb.Size() == dst.Size() {
		draw.Draw(target, dst, src, sb.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(target, dst, src, sb, draw.Src, nil)
	}
}

// present runs with c.mu held.
func (c *Compositor) present() {
	if c.display != nil {
		c.display.Present(c.visible)
	}
}

// Snapshot returns a copy of the visible surface.
func (c *Compositor) Snapshot() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	img := image.NewRGBA(c.visible.Bounds())
	draw.Copy(img, image.Point{}, c.visible, c.visible.Bounds(), draw.Src, nil)
	return img
}
