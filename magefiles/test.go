//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs the unit tests with the race detector. None of them needs a GPU.
func (Test) All() error {
	return execute("go", "test", "-race", "-count=1", "./engine/...")
}
