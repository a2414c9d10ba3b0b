package vfs

import (
	"fmt"
	"io"
	"os"
	path_ "path/filepath"
)

type DirectoryDriver struct {
	path string
}

func (dd *DirectoryDriver) Init(parent Directory) {}

func (dd *DirectoryDriver) Name() string {
	return path_.Base(dd.path)
}

func (dd *DirectoryDriver) IsDirectory() bool {
	return true
}

func (dd *DirectoryDriver) List() ([]string, error) {
	entries, err := os.ReadDir(dd.path)
	if err != nil {
		return nil, fmt.Errorf("Error getting directory '%s' info: %v", dd.path, err)
	}
	result := make([]string, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.Name())
	}
	return result, nil
}

func (dd *DirectoryDriver) GetElement(name string) (Element, error) {
	newPath := path_.Join(dd.path, name)
	s, err := os.Stat(newPath)
	if err != nil {
		return nil, fmt.Errorf("Stat error: %w", err)
	}
	var e Element
	if s.IsDir() {
		e = NewDirectoryDriver(newPath)
	} else {
		e = NewDirectoryDriverFile(newPath)
	}
	e.Init(dd)
	return e, nil
}

func (dd *DirectoryDriver) Path() string {
	return dd.path
}

func NewDirectoryDriver(path string) *DirectoryDriver {
	return &DirectoryDriver{path: path}
}

type DirectoryDriverFile struct {
	path string
	f    *os.File
}

func NewDirectoryDriverFile(path string) *DirectoryDriverFile {
	return &DirectoryDriverFile{
		path: path,
	}
}

func (ddf *DirectoryDriverFile) Init(parent Directory) {
	if dd, ok := parent.(*DirectoryDriver); ok {
		ddf.path = path_.Join(dd.path, path_.Base(ddf.path))
	}
}

func (ddf *DirectoryDriverFile) Name() string {
	return path_.Base(ddf.path)
}

func (ddf *DirectoryDriverFile) IsDirectory() bool {
	return false
}

func (ddf *DirectoryDriverFile) Size() int64 {
	if stat, err := os.Stat(ddf.path); err != nil {
		return 0
	} else {
		return stat.Size()
	}
}

func (ddf *DirectoryDriverFile) Open() error {
	if ddf.f != nil {
		return fmt.Errorf("File already opened")
	}
	f, err := os.Open(ddf.path)
	if err != nil {
		return fmt.Errorf("os.Open('%s'): %w", ddf.path, err)
	}
	ddf.f = f
	return nil
}

func (ddf *DirectoryDriverFile) Close() error {
	if ddf.f != nil {
		if err := ddf.f.Close(); err != nil {
			return fmt.Errorf("os.File.Close(): %v", err)
		}
		ddf.f = nil
	}
	return nil
}

func (ddf *DirectoryDriverFile) Reader() (*io.SectionReader, error) {
	if ddf.f == nil {
		return nil, fmt.Errorf("First you need to open file")
	}
	return io.NewSectionReader(ddf.f, 0, ddf.Size()), nil
}
