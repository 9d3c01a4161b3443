//go:build tinygo || !cgo

package glrun

import (
	"errors"

	"github.com/graphgl/graphgl"
)

var errNoCGO = errors.New("GPU program execution requires CGo and is not supported on TinyGo")

// Validate compiles the program on a hidden GPU context.
func Validate(res *graphgl.Result) ([]graphgl.Diagnostic, error) {
	return nil, errNoCGO
}

// Show opens a window and runs the program until the window closes.
func Show(res *graphgl.Result, cfg Config) error {
	return errNoCGO
}
