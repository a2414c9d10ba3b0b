package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/mogaika/moiety/loader"
	"github.com/mogaika/moiety/resource"
	"github.com/mogaika/moiety/vfs"
)

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestImportAndFetch(t *testing.T) {
	root := t.TempDir()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, root, "aspit/CARD/1.json", []byte(`{"name":1}`))
	writeFile(t, root, "aspit/NAME/5.json.zst", enc.EncodeAll([]byte(`["","aspit"]`), nil))
	writeFile(t, root, "aspit/XXXX/1.json", []byte(`{}`))
	writeFile(t, root, "aspit/CARD/readme.txt", []byte(`skip me`))
	enc.Close()

	a, err := Open(filepath.Join(t.TempDir(), "riven.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	ctx := context.Background()
	n, err := a.Import(ctx, vfs.NewDirectoryDriver(root), nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("imported %d; expected 2", n)
	}

	var fetchTests = []struct {
		key  resource.Key
		data string
	}{
		{resource.Key{Stack: "aspit", Type: resource.CARD, ID: 1}, `{"name":1}`},
		{resource.Key{Stack: "aspit", Type: resource.NAME, ID: 5}, `["","aspit"]`},
	}
	for _, test := range fetchTests {
		data, err := a.Fetch(ctx, test.key)
		if err != nil {
			t.Errorf("Fetch(%v): %v", test.key, err)
			continue
		}
		if string(data) != test.data {
			t.Errorf("Fetch(%v)=%q; expected %q", test.key, data, test.data)
		}
	}

	_, err = a.Fetch(ctx, resource.Key{Stack: "bspit", Type: resource.CARD, ID: 1})
	if !errors.Is(err, loader.ErrNotFound) {
		t.Errorf("err=%v; expected not found", err)
	}

	keys, err := a.Keys(ctx, "aspit")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0].Type != resource.CARD || keys[1].Type != resource.NAME {
		t.Errorf("Keys=%v", keys)
	}
}

func TestPutReplaces(t *testing.T) {
	a, err := Open(filepath.Join(t.TempDir(), "riven.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	ctx := context.Background()
	k := resource.Key{Stack: "jspit", Type: resource.RMAP, ID: 1}
	for _, d := range []string{`[1]`, `[2]`} {
		if err := a.Put(ctx, k, []byte(d)); err != nil {
			t.Fatal(err)
		}
	}
	data, err := a.Fetch(ctx, k)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `[2]` {
		t.Errorf("data=%q; expected [2]", data)
	}
}
