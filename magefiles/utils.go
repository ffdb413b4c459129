//go:build mage

package main

import (
	"fmt"
	"strings"

	"github.com/magefile/mage/sh"
)

const shaderDir = "assets/shaders"

// execute echoes the command line and streams its output to the terminal.
func execute(command string, args ...string) error {
	fmt.Printf("Executing: %s %s\n", command, strings.Join(args, " "))
	if err := sh.RunV(command, args...); err != nil {
		return fmt.Errorf("error executing %s: %w", command, err)
	}
	return nil
}
