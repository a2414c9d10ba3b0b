package resource

import (
	"bytes"
	"encoding/json"
	"image/png"
	"sync"

	"github.com/pkg/errors"

	"github.com/mogaika/moiety/config"
)

// Decoder turns the stored bytes of a resource into its in-memory value.
type Decoder func(key Key, data []byte) (interface{}, error)

var (
	handlersLock sync.RWMutex
	gHandlers    = make(map[Type]Decoder)
)

func SetHandler(t Type, d Decoder) {
	handlersLock.Lock()
	defer handlersLock.Unlock()
	gHandlers[t] = d
}

func CallHandler(key Key, data []byte) (interface{}, error) {
	handlersLock.RLock()
	h, found := gHandlers[key.Type]
	handlersLock.RUnlock()
	if !found {
		return nil, errors.Errorf("[resource] Cannot find handler for type %q", key.Type)
	}
	v, err := h(key, data)
	if err != nil {
		return nil, errors.Wrapf(err, "[resource] Cannot decode %v", key)
	}
	return v, nil
}

func jsonHandler[T any]() Decoder {
	return func(key Key, data []byte) (interface{}, error) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func decodeCard(key Key, data []byte) (interface{}, error) {
	c := &Card{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeNames(key Key, data []byte) (interface{}, error) {
	text, err := config.ToUTF8(data)
	if err != nil {
		return nil, err
	}
	var names NameTable
	if err := json.Unmarshal(text, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func decodeBitmap(key Key, data []byte) (interface{}, error) {
	return png.Decode(bytes.NewReader(data))
}

func decodeMovie(key Key, data []byte) (interface{}, error) {
	return &Movie{Data: data}, nil
}

func decodeRecord(key Key, data []byte) (interface{}, error) {
	if !json.Valid(data) {
		return nil, errors.New("invalid json")
	}
	return Record(append([]byte(nil), data...)), nil
}

func init() {
	SetHandler(CARD, decodeCard)
	SetHandler(PLST, jsonHandler[PictureList]())
	SetHandler(BLST, jsonHandler[ButtonList]())
	SetHandler(HSPT, jsonHandler[HotspotList]())
	SetHandler(SLST, jsonHandler[SoundSetList]())
	SetHandler(RMAP, jsonHandler[RoomMap]())
	SetHandler(NAME, decodeNames)
	for _, t := range []Type{FLST, MLST, SFXE, VARS, VERS, ZIPS} {
		SetHandler(t, decodeRecord)
	}
	SetHandler(TBMP, decodeBitmap)
	SetHandler(TMOV, decodeMovie)
	// tWAV is registered by the audio package
}
