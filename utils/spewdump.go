package utils

import (
	"log"

	"github.com/davecgh/go-spew/spew"
)

var spewConfig *spew.ConfigState

func init() {
	spewConfig = spew.NewDefaultConfig()
	spewConfig.DisableCapacities = true
	spewConfig.DisablePointerAddresses = true
	spewConfig.MaxDepth = 6
}

func SDump(a ...interface{}) string {
	return spewConfig.Sdump(a...)
}

// LogDump writes a dump of a under the given subsystem prefix.
func LogDump(prefix string, a ...interface{}) {
	log.Printf("[%s] %s", prefix, spewConfig.Sdump(a...))
}
