package config

import "time"

const (
	// MouseDownGrace is how long a mouse-down handler may run before the busy
	// cursor is shown.
	MouseDownGrace = 100 * time.Millisecond
	// TransitionDuration is the length of every scheduled screen transition.
	TransitionDuration = 250 * time.Millisecond
	// FrameInterval paces transition animation frames.
	FrameInterval = time.Second / 60
	// FadeDuration is the length of background sound fades.
	FadeDuration = time.Second

	CacheCapacity   = 300
	DefaultPriority = 2

	// WildcardCase is the branch key matching any variable value.
	WildcardCase = 0xFFFF

	ScreenWidth  = 608
	ScreenHeight = 392

	DefaultCursor = 3000
	BusyCursor    = 3004
)

var StackNames = []string{
	"aspit", "bspit", "gspit", "jspit", "ospit",
	"pspit", "rspit", "tspit",
}

func IsStackName(name string) bool {
	for _, s := range StackNames {
		if s == name {
			return true
		}
	}
	return false
}
