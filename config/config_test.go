package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.Cache.Capacity != CacheCapacity || c.Cache.Priority != DefaultPriority {
		t.Errorf("unexpected cache defaults %+v", c.Cache)
	}
	if c.Player.StartStack != "aspit" || c.Player.StartCard != 1 {
		t.Errorf("unexpected start %+v", c.Player)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moiety.yaml")
	data := []byte(`
addr: ":9000"
resources:
  dir: /data/riven
  timeout: 5s
cache:
  capacity: 50
player:
  start_stack: tspit
  start_card: 7
`)
	if err := os.WriteFile(path, data, 0666); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MOIETY_CACHE_PRIORITY", "3")
	t.Setenv("MOIETY_RESOURCES_REMOTE", "http://example.test/resources")

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Addr != ":9000" {
		t.Errorf("addr = %q", c.Addr)
	}
	if c.Resources.Dir != "/data/riven" || c.Resources.Timeout != 5*time.Second {
		t.Errorf("resources = %+v", c.Resources)
	}
	if c.Resources.Remote != "http://example.test/resources" {
		t.Errorf("remote = %q", c.Resources.Remote)
	}
	if c.Cache.Capacity != 50 || c.Cache.Priority != 3 {
		t.Errorf("cache = %+v", c.Cache)
	}
	if c.Player.StartStack != "tspit" || c.Player.StartCard != 7 {
		t.Errorf("player = %+v", c.Player)
	}
}

func TestValidateRejectsUnknownStack(t *testing.T) {
	c := Default()
	c.Player.StartStack = "zspit"
	if err := c.Validate(); err == nil {
		t.Error("expected error for unknown stack")
	}
}

func TestToUTF8(t *testing.T) {
	if err := SetEncoding("windows-1252"); err != nil {
		t.Fatal(err)
	}
	out, err := ToUTF8([]byte{'c', 'a', 'f', 0xe9})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "café" {
		t.Errorf("got %q", out)
	}
	same, _ := ToUTF8([]byte("plain"))
	if string(same) != "plain" {
		t.Errorf("got %q", same)
	}
	if _, err := FindEncoding("no-such-encoding"); err == nil {
		t.Error("expected error")
	}
}
