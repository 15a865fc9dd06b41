package peg

import (
	"github.com/btcsuite/btclog"

	"github.com/palomachain/peg/build"
)

var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger("PEG", nil))
}

// DisableLog disables all library log output.
func DisableLog() {
	log = btclog.Disabled
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}
