package resource

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Type is a resource type code as used in resource archives.
type Type string

const (
	CARD Type = "CARD"
	PLST Type = "PLST"
	BLST Type = "BLST"
	HSPT Type = "HSPT"
	NAME Type = "NAME"
	RMAP Type = "RMAP"
	SLST Type = "SLST"
	FLST Type = "FLST"
	MLST Type = "MLST"
	SFXE Type = "SFXE"
	VARS Type = "VARS"
	VERS Type = "VERS"
	ZIPS Type = "ZIPS"

	TBMP Type = "tBMP"
	TMOV Type = "tMOV"
	TWAV Type = "tWAV"
)

var Types = []Type{
	BLST, CARD, FLST, HSPT, MLST, NAME, PLST, RMAP,
	SFXE, SLST, TBMP, TMOV, TWAV, VARS, VERS, ZIPS,
}

func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", errors.Errorf("unknown resource type %q", s)
}

// IsMedia reports whether t resolves to a binary media handle rather than a
// structured record.
func (t Type) IsMedia() bool {
	return t == TBMP || t == TMOV || t == TWAV
}

// Ext is the file extension a resource of type t is stored and served with.
func (t Type) Ext() string {
	switch t {
	case TBMP:
		return ".png"
	case TMOV:
		return ".mov"
	case TWAV:
		return ".wav"
	default:
		return ".json"
	}
}

func (t Type) ContentType() string {
	switch t {
	case TBMP:
		return "image/png"
	case TMOV:
		return "video/quicktime"
	case TWAV:
		return "audio/wav"
	default:
		return "application/json"
	}
}

// Name table record ids within a stack.
const (
	CardNames     = 1
	HotspotNames  = 2
	CommandNames  = 3
	VariableNames = 4
	StackNames    = 5
)

// Key addresses one resource record.
type Key struct {
	Stack string
	Type  Type
	ID    int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Stack, k.Type, k.ID)
}

// Path is the relative location of the resource inside a resource tree or
// under a resource server root.
func (k Key) Path() string {
	return fmt.Sprintf("%s/%s/%d%s", k.Stack, k.Type, k.ID, k.Type.Ext())
}

// ParseFileName splits "12.json" into id 12, checking the extension against t.
func ParseFileName(t Type, file string) (int, error) {
	ext := t.Ext()
	if !strings.HasSuffix(file, ext) {
		return 0, errors.Errorf("file %q has wrong extension for %s", file, t)
	}
	id, err := strconv.Atoi(strings.TrimSuffix(file, ext))
	if err != nil {
		return 0, errors.Wrapf(err, "bad resource id in %q", file)
	}
	return id, nil
}
