package main

import (
	"os"

	"github.com/magefile/mage/sh"
)

const binLint = "golangci-lint"

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Vet runs go vet.
func Vet() error {
	return sh.RunV(binGo, "vet", "./...")
}

func mkBinDir() error {
	return os.MkdirAll(binaryDir, 0o755)
}
