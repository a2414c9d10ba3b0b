package loader

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/pkg/errors"

	"github.com/mogaika/moiety/cache"
	"github.com/mogaika/moiety/config"
	"github.com/mogaika/moiety/resource"
	"github.com/mogaika/moiety/status"
	"github.com/mogaika/moiety/utils"
)

var ErrLoadFailure = errors.New("load failure")

// LoadError is the failure of one resource fetch or decode.
type LoadError struct {
	Key resource.Key
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %v: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrLoadFailure }

// StackView exposes what the prefetcher needs to know about the player.
type StackView interface {
	CurrentStack() string
	StackName(id int) (string, bool)
}

type Options struct {
	Priority int
	Validate bool
	Debug    bool
}

type Loader struct {
	cache     *cache.Cache
	transport Transport
	opts      Options
	hub       *status.Hub

	viewLock sync.RWMutex
	view     StackView
}

func New(c *cache.Cache, t Transport, hub *status.Hub, opts Options) *Loader {
	if opts.Priority <= 0 {
		opts.Priority = config.DefaultPriority
	}
	if hub == nil {
		hub = status.Default()
	}
	return &Loader{cache: c, transport: t, opts: opts, hub: hub}
}

func (l *Loader) SetStackView(v StackView) {
	l.viewLock.Lock()
	l.view = v
	l.viewLock.Unlock()
}

func (l *Loader) stackView() StackView {
	l.viewLock.RLock()
	defer l.viewLock.RUnlock()
	return l.view
}

// Request returns the cached load for key, or starts one recorded at
// priority. It never blocks.
func (l *Loader) Request(key resource.Key, priority int) *cache.Future {
	return l.request(key, priority, false)
}

// request starts a load. Failures of speculative loads are only logged;
// the operator hears about them once something actually needs the record.
func (l *Loader) request(key resource.Key, priority int, speculative bool) *cache.Future {
	f, created := l.cache.Acquire(key, priority)
	if created {
		go l.fetch(key, f, speculative)
	}
	return f
}

func (l *Loader) fetch(key resource.Key, f *cache.Future, speculative bool) {
	data, err := l.transport.Fetch(context.Background(), key)
	if err == nil && l.opts.Validate && !key.Type.IsMedia() {
		err = resource.Validate(key.Type, data)
	}
	var v interface{}
	if err == nil {
		v, err = resource.CallHandler(key, data)
	}
	if err != nil {
		err = &LoadError{Key: key, Err: err}
		// failed loads are not cached so a later request retries
		l.cache.Remove(key, f)
		if speculative {
			l.logf("prefetch: %v", err)
		} else {
			l.hub.Error("%v", err)
		}
	} else if l.opts.Debug {
		utils.LogDump("loader", key, v)
	}
	f.Resolve(v, err)
}

// Load requests key at the default priority and starts prefetching what
// the resource refers to.
func (l *Loader) Load(key resource.Key) *cache.Future {
	f := l.Request(key, l.opts.Priority)
	l.Prefetch(l.opts.Priority, key)
	return f
}

// Get loads key and waits for it.
func (l *Loader) Get(ctx context.Context, key resource.Key) (interface{}, error) {
	return l.Load(key).Wait(ctx)
}

func Get[T any](ctx context.Context, l *Loader, key resource.Key) (T, error) {
	var zero T
	v, err := l.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &LoadError{Key: key, Err: errors.Errorf("unexpected value %T", v)}
	}
	return t, nil
}

// Await waits for an already requested future and checks its type.
func Await[T any](ctx context.Context, key resource.Key, f *cache.Future) (T, error) {
	var zero T
	v, err := f.Wait(ctx)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &LoadError{Key: key, Err: errors.Errorf("unexpected value %T", v)}
	}
	return t, nil
}

func (l *Loader) RoomMap(ctx context.Context, stack string) (resource.RoomMap, error) {
	return Get[resource.RoomMap](ctx, l, resource.Key{Stack: stack, Type: resource.RMAP, ID: 1})
}

func (l *Loader) Bitmap(ctx context.Context, stack string, id int) (image.Image, error) {
	return Get[image.Image](ctx, l, resource.Key{Stack: stack, Type: resource.TBMP, ID: id})
}

func (l *Loader) logf(format string, a ...interface{}) {
	if l.opts.Debug {
		log.Printf("[loader] "+format, a...)
	}
}
