package resource

import (
	"bytes"
	"embed"
	"encoding/json"
	"path"
	"sync"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

const schemaBase = "https://moiety.local/schemas/"

var schemaNames = map[Type]string{
	CARD: "card.schema.json",
	PLST: "plst.schema.json",
	BLST: "blst.schema.json",
	HSPT: "hspt.schema.json",
	SLST: "slst.schema.json",
	NAME: "name.schema.json",
	RMAP: "rmap.schema.json",
}

var (
	schemasOnce sync.Once
	schemas     map[Type]*jsonschema.Schema
	schemasErr  error
)

func compileSchemas() {
	c := jsonschema.NewCompiler()
	entries, err := schemaFiles.ReadDir("schemas")
	if err != nil {
		schemasErr = err
		return
	}
	for _, e := range entries {
		data, err := schemaFiles.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			schemasErr = err
			return
		}
		if err := c.AddResource(schemaBase+e.Name(), bytes.NewReader(data)); err != nil {
			schemasErr = errors.Wrapf(err, "Failed to add schema %q", e.Name())
			return
		}
	}
	schemas = make(map[Type]*jsonschema.Schema, len(schemaNames))
	for t, name := range schemaNames {
		s, err := c.Compile(schemaBase + name)
		if err != nil {
			schemasErr = errors.Wrapf(err, "Failed to compile schema %q", name)
			return
		}
		schemas[t] = s
	}
}

// Validate checks structured record data against the schema for t. Types
// without a schema always pass.
func Validate(t Type, data []byte) error {
	schemasOnce.Do(compileSchemas)
	if schemasErr != nil {
		return schemasErr
	}
	s, ok := schemas[t]
	if !ok {
		return nil
	}
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return errors.Wrapf(err, "invalid %s json", t)
	}
	if err := s.Validate(v); err != nil {
		return errors.Wrapf(err, "%s record does not match schema", t)
	}
	return nil
}
