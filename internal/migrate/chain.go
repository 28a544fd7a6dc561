// Package migrate applies an ordered chain of SQL migrations to a SQLite
// database and records the applied revision in a single-row marker table.
package migrate

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migration is one link of the chain. Revision is "NNNN_name"; Previous is
// the revision it must be applied on top of, empty for the root.
type Migration struct {
	Version  uint
	Revision string
	Previous string
	Up       string
	Down     string
}

// Reversible reports whether the migration has a down script.
func (m Migration) Reversible() bool {
	return m.Down != ""
}

// Chain errors.
var (
	ErrEmptyChain  = errors.New("migration chain is empty")
	ErrBrokenChain = errors.New("migration chain is broken")
)

// LoadChain reads NNNN_name.up.sql / NNNN_name.down.sql files from dir in
// fsys and links them in version order.
func LoadChain(fsys fs.FS, dir string) ([]Migration, error) {
	driver, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("opening migration source %s: %w", dir, err)
	}
	defer driver.Close()

	version, err := driver.First()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrEmptyChain
	}
	if err != nil {
		return nil, fmt.Errorf("reading first migration: %w", err)
	}

	var chain []Migration
	previous := ""
	for {
		m, err := readMigration(driver, version)
		if err != nil {
			return nil, err
		}
		m.Previous = previous
		chain = append(chain, m)
		previous = m.Revision

		version, err = driver.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading migration after %s: %w", m.Revision, err)
		}
	}
	return chain, nil
}

func readMigration(driver source.Driver, version uint) (Migration, error) {
	r, identifier, err := driver.ReadUp(version)
	if err != nil {
		return Migration{}, fmt.Errorf("reading up migration %d: %w", version, err)
	}
	up, err := readAll(r)
	if err != nil {
		return Migration{}, fmt.Errorf("reading up migration %d: %w", version, err)
	}

	m := Migration{
		Version:  version,
		Revision: fmt.Sprintf("%04d_%s", version, identifier),
		Up:       up,
	}

	r, _, err = driver.ReadDown(version)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return m, nil
	case err != nil:
		return Migration{}, fmt.Errorf("reading down migration %d: %w", version, err)
	}
	if m.Down, err = readAll(r); err != nil {
		return Migration{}, fmt.Errorf("reading down migration %d: %w", version, err)
	}
	return m, nil
}

func readAll(r io.ReadCloser) (string, error) {
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// validateChain checks that revisions are unique and each one points at its
// predecessor in the slice.
func validateChain(chain []Migration) error {
	if len(chain) == 0 {
		return ErrEmptyChain
	}
	seen := make(map[string]bool, len(chain))
	previous := ""
	for _, m := range chain {
		if m.Revision == "" {
			return fmt.Errorf("%w: migration %d has no revision", ErrBrokenChain, m.Version)
		}
		if seen[m.Revision] {
			return fmt.Errorf("%w: duplicate revision %s", ErrBrokenChain, m.Revision)
		}
		if m.Previous != previous {
			return fmt.Errorf("%w: %s follows %q, want %q", ErrBrokenChain, m.Revision, m.Previous, previous)
		}
		if m.Up == "" {
			return fmt.Errorf("%w: %s has no up script", ErrBrokenChain, m.Revision)
		}
		seen[m.Revision] = true
		previous = m.Revision
	}
	return nil
}
