package config

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

var (
	encodingLock   sync.RWMutex
	currentCharMap *charmap.Charmap = charmap.Windows1252
)

func normalizeEncodingName(name string) string {
	r := strings.NewReplacer(" ", "", "-", "", "_", "")
	return strings.ToLower(r.Replace(name))
}

func FindEncoding(name string) (*charmap.Charmap, error) {
	want := normalizeEncodingName(name)
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			if normalizeEncodingName(cm.String()) == want {
				return cm, nil
			}
		}
	}
	return nil, errors.Errorf("Failed to find encoding %q", name)
}

func SetEncoding(name string) error {
	cm, err := FindEncoding(name)
	if err != nil {
		return err
	}
	encodingLock.Lock()
	currentCharMap = cm
	encodingLock.Unlock()
	return nil
}

func ListEncodings() []string {
	list := make([]string, 0)
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

func GetEncoding() *charmap.Charmap {
	encodingLock.RLock()
	defer encodingLock.RUnlock()
	return currentCharMap
}

// ToUTF8 returns data unchanged when it is already valid UTF-8, otherwise
// transcodes it from the configured single-byte encoding.
func ToUTF8(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return data, nil
	}
	out, err := GetEncoding().NewDecoder().Bytes(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to decode text as %v", GetEncoding())
	}
	return out, nil
}
