// Package vblog provides the structured-logging composition shared by the
// layers of the decompiler that log (pe, vb, decompiler). It mirrors
// the teacher's own File.logger construction in saferwall/pe's file.go
// (log.NewStdLogger + log.NewFilter + log.FilterLevel), built directly on
// the upstream github.com/go-kratos/kratos/v2/log package since the
// teacher's own saferwall/pe/log subpackage isn't vendored here.
package vblog

import (
	"os"

	"github.com/go-kratos/kratos/v2/log"
)

// Default returns a *log.Helper writing to stdout, filtered to errors and
// above. Packages take an explicit log.Logger in their Options so callers
// can redirect or silence it; this is only the zero-value fallback.
func Default() *log.Helper {
	return New(nil)
}

// New wraps logger (or, if nil, a stdout logger) in the same
// Helper/Filter composition the teacher uses, filtered at LevelError so
// routine parsing noise doesn't reach the console by default.
func New(logger log.Logger) *log.Helper {
	if logger == nil {
		logger = log.NewStdLogger(os.Stdout)
	}
	return log.NewHelper(log.NewFilter(logger, log.FilterLevel(log.LevelError)))
}
