//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles every GLSL stage under assets/shaders to SPIR-V next to it.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the testbed binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Building engine...")
	return execute("go", "build", "-o", filepath.Join("bin", "tessera"), ".")
}

func buildShaders() error {
	var sources []string
	for _, pattern := range []string{"*.vert", "*.frag"} {
		matches, err := filepath.Glob(filepath.Join(shaderDir, pattern))
		if err != nil {
			return err
		}
		sources = append(sources, matches...)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no shader sources in %s", shaderDir)
	}
	for _, src := range sources {
		if err := execute("glslc", src, "-o", src+".spv"); err != nil {
			return err
		}
	}
	return nil
}
