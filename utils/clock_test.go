package utils

import (
	"testing"
	"time"
)

func TestManualClockFiresInOrder(t *testing.T) {
	start := time.Unix(1000, 0)
	c := NewManualClock(start)

	early := c.After(10 * time.Millisecond)
	late := c.After(50 * time.Millisecond)
	if c.Pending() != 2 {
		t.Fatalf("Pending()=%d; expected 2", c.Pending())
	}

	c.Advance(20 * time.Millisecond)
	select {
	case <-early:
	default:
		t.Error("early timer did not fire")
	}
	select {
	case <-late:
		t.Error("late timer fired too soon")
	default:
	}

	c.Advance(30 * time.Millisecond)
	select {
	case at := <-late:
		if !at.Equal(start.Add(50 * time.Millisecond)) {
			t.Errorf("late fired at %v", at)
		}
	default:
		t.Error("late timer did not fire")
	}
	if c.Pending() != 0 {
		t.Errorf("Pending()=%d; expected 0", c.Pending())
	}
}

func TestInstantClockAdvancesNow(t *testing.T) {
	start := time.Unix(0, 0)
	c := NewInstantClock(start)
	<-c.After(time.Second)
	<-c.After(250 * time.Millisecond)
	if got := c.Now().Sub(start); got != 1250*time.Millisecond {
		t.Errorf("Now()-start=%v; expected 1.25s", got)
	}
}
