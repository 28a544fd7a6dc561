// Build targets for recipebox.
//
// Usage:
//
//	mage build          Compile the recipebox binary to bin/
//	mage install        Install recipebox to GOPATH/bin
//	mage clean          Remove build artifacts
//	mage test:all       Run every test
//	mage test:cover     Run every test with a coverage report
//	mage lint           Run golangci-lint
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "recipebox"
	binaryDir  = "bin"
	cmdDir     = "./cmd/recipebox"
	versionVar = "github.com/mesh-intelligence/recipebox/internal/cli.Version"
)

// version returns the version stamped into the binary: $VERSION, else the
// nearest git tag, else "dev".
func version() string {
	if v := os.Getenv("VERSION"); v != "" {
		return strings.TrimPrefix(v, "v")
	}
	if tag, err := sh.Output("git", "describe", "--tags", "--always", "--dirty"); err == nil && tag != "" {
		return strings.TrimPrefix(tag, "v")
	}
	return "dev"
}

// Build compiles the recipebox binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	ldflags := fmt.Sprintf("-X %s=%s", versionVar, version())
	return sh.RunV(binGo, "build", "-v", "-ldflags", ldflags, "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
