package loader

import (
	"github.com/mogaika/moiety/cache"
	"github.com/mogaika/moiety/resource"
	"github.com/mogaika/moiety/script"
)

// Prefetch requests key at priority and, once it arrives, the resources it
// refers to. Every goto hop lowers the priority by one and nothing is
// prefetched at priority zero or below.
func (l *Loader) Prefetch(priority int, key resource.Key) {
	if priority <= 0 {
		return
	}
	f := l.request(key, priority, true)

	switch key.Type {
	case resource.PLST:
		l.after(f, func(v interface{}) {
			if plst, ok := v.(resource.PictureList); ok && len(plst) > 0 {
				for _, p := range plst[1:] {
					l.request(resource.Key{Stack: key.Stack, Type: resource.TBMP, ID: p.Bitmap}, priority, true)
				}
			}
		})
	case resource.CARD:
		l.after(f, func(v interface{}) {
			if card, ok := v.(*resource.Card); ok {
				l.prefetchScript(priority, card.Script, key.Stack)
			}
		})
	case resource.HSPT:
		l.after(f, func(v interface{}) {
			if hspt, ok := v.(resource.HotspotList); ok {
				for _, h := range hspt.Entries() {
					l.prefetchScript(priority, h.Script, key.Stack)
				}
			}
		})
	case resource.SLST:
		l.after(f, func(v interface{}) {
			if slst, ok := v.(resource.SoundSetList); ok && len(slst) > 0 {
				for _, set := range slst[1:] {
					for _, s := range set.Sounds {
						l.request(resource.Key{Stack: key.Stack, Type: resource.TWAV, ID: s.SoundID}, priority, true)
					}
				}
			}
		})
	}
}

// PrefetchCard requests the five records that make up a card.
func (l *Loader) PrefetchCard(priority int, stack string, card int) {
	for _, t := range []resource.Type{resource.CARD, resource.PLST, resource.BLST, resource.HSPT, resource.SLST} {
		l.Prefetch(priority, resource.Key{Stack: stack, Type: t, ID: card})
	}
}

// PrefetchStack requests the name tables of a stack.
func (l *Loader) PrefetchStack(priority int, stack string) {
	for id := resource.CardNames; id <= resource.StackNames; id++ {
		l.Prefetch(priority, resource.Key{Stack: stack, Type: resource.NAME, ID: id})
	}
}

func (l *Loader) prefetchScript(priority int, s script.Script, stack string) {
	s.Walk(func(ins *script.Instruction) {
		switch ins.Op {
		case script.OpGotoCard:
			l.PrefetchCard(priority-1, stack, ins.Arg(0))
		case script.OpGotoStack:
			l.prefetchStackJump(priority, stack, ins)
		case script.OpPlayWav:
			l.request(resource.Key{Stack: stack, Type: resource.TWAV, ID: ins.Arg(0)}, priority, true)
		}
	})
}

// prefetchStackJump follows a goto-stack only when the walked script lives
// on the stack the player is currently in, since the stack name table it
// resolves through belongs to that stack.
func (l *Loader) prefetchStackJump(priority int, stack string, ins *script.Instruction) {
	view := l.stackView()
	if view == nil || view.CurrentStack() != stack {
		return
	}
	target, ok := view.StackName(ins.Arg(0))
	if !ok {
		return
	}
	code := uint32(ins.Arg(1))<<16 | uint32(ins.Arg(2))
	f := l.request(resource.Key{Stack: target, Type: resource.RMAP, ID: 1}, priority-1, true)
	l.after(f, func(v interface{}) {
		rmap, ok := v.(resource.RoomMap)
		if !ok {
			return
		}
		if card, found := rmap.Find(code); found {
			l.logf("prefetching %s card %d at priority %d", target, card, priority-1)
			l.PrefetchStack(priority-1, target)
			l.PrefetchCard(priority-1, target, card)
		}
	})
}

// after runs fn with the value of f once it settles successfully.
func (l *Loader) after(f *cache.Future, fn func(v interface{})) {
	if v, err, ok := f.Result(); ok {
		if err == nil {
			go fn(v)
		}
		return
	}
	go func() {
		<-f.Done()
		if v, err, _ := f.Result(); err == nil {
			fn(v)
		}
	}()
}
