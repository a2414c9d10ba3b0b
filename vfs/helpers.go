package vfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ZstdSuffix marks files stored zstd-compressed; ReadFile decompresses them.
const ZstdSuffix = ".zst"

func OpenFileAndGetReader(f File) (*io.SectionReader, error) {
	if err := f.Open(); err != nil {
		return nil, fmt.Errorf("Cannot open file '%s': %w", f.Name(), err)
	}
	r, err := f.Reader()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("Cannot get file '%s' reader: %w", f.Name(), err)
	}
	return r, nil
}

func DirectoryGetFile(d Directory, name string) (File, error) {
	if f, err := d.GetElement(name); err != nil {
		return nil, fmt.Errorf("Cannot open file '%s': %w", name, err)
	} else if f.IsDirectory() {
		return nil, fmt.Errorf("File '%s' is directory, not a file!", name)
	} else {
		return f.(File), nil
	}
}

func DirectoryGetDirectory(d Directory, name string) (Directory, error) {
	if e, err := d.GetElement(name); err != nil {
		return nil, fmt.Errorf("Cannot open directory '%s': %w", name, err)
	} else if !e.IsDirectory() {
		return nil, fmt.Errorf("'%s' is not a directory", name)
	} else {
		return e.(Directory), nil
	}
}

// Walk resolves a slash separated path relative to d.
func Walk(d Directory, path string) (Element, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	cur := d
	for i, p := range parts {
		if i == len(parts)-1 {
			return cur.GetElement(p)
		}
		next, err := DirectoryGetDirectory(cur, p)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// ReadFile returns the whole content of f, transparently decompressing
// files whose name ends in ZstdSuffix.
func ReadFile(f File) ([]byte, error) {
	r, err := OpenFileAndGetReader(f)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !strings.HasSuffix(f.Name(), ZstdSuffix) {
		return io.ReadAll(r)
	}
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("Cannot create zstd reader for '%s': %w", f.Name(), err)
	}
	defer dec.Close()
	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("Cannot decompress '%s': %w", f.Name(), err)
	}
	return data, nil
}

// ReadPath reads name from d, falling back to its zstd compressed sibling.
func ReadPath(d Directory, name string) ([]byte, error) {
	e, err := Walk(d, name)
	if err != nil {
		if ze, zerr := Walk(d, name+ZstdSuffix); zerr == nil {
			e, err = ze, nil
		}
	}
	if err != nil {
		return nil, err
	}
	if e.IsDirectory() {
		return nil, fmt.Errorf("'%s' is a directory", name)
	}
	return ReadFile(e.(File))
}

func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
