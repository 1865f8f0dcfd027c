//go:build mage

// Package main contains Mage build targets for matchboard developer tooling.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binDir = "bin"

// binaries maps output names to their main packages.
var binaries = map[string]string{
	"matchboard-service": "./cmd/service",
	"matchboard":         "./cmd/matchboard",
}

// Default target when mage is run without arguments.
var Default = Build

// Build compiles the service and CLI binaries into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	for name, pkg := range binaries {
		out := filepath.Join(binDir, name)
		if err := sh.RunV("go", "build", "-ldflags", "-X main.version="+version, "-o", out, pkg); err != nil {
			return fmt.Errorf("go build %s: %w", pkg, err)
		}
		fmt.Printf("Built %s\n", out)
	}
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Integration runs tests that need a live provider key or memcached.
func Integration() error {
	return sh.RunV("go", "test", "-tags", "integration", "-count=1", "./...")
}

// Lint runs go vet.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Check runs lint then tests.
func Check() {
	mg.SerialDeps(Lint, Test)
}

// Run starts the service with the dev config.
func Run() error {
	mg.Deps(Build)
	return sh.RunWithV(map[string]string{"ENV_NAME": "dev"}, filepath.Join(binDir, "matchboard-service"))
}

// Clean removes build output and the local cache directory.
func Clean() error {
	if err := sh.Rm(binDir); err != nil {
		return err
	}
	return sh.Rm(".cache")
}
