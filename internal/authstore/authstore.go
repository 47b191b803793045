// Package authstore implements component C of spec.md: a
// filesystem-backed credential directory per {tenant, device}, with
// atomic rotation from a legacy flat layout and identity extraction.
//
// This package intentionally has no third-party dependency: the
// directory layout and atomic-rename dance are pure os/filepath
// operations with no ecosystem library in the retrieved pack fitting
// better than the standard library (see DESIGN.md).
package authstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store owns {root}/{tenant_id}/{device_id}/... credential directories.
type Store struct {
	root string
}

// New returns a Store rooted at root, creating it if absent.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("authstore: create root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

func (s *Store) currentDir(tenantID, deviceID string) string {
	return filepath.Join(s.root, tenantID, deviceID)
}

func (s *Store) legacyDir(deviceID string) string {
	return filepath.Join(s.root, deviceID)
}

// Resolve returns the credential directory for {tenant, device},
// creating it if absent. If a legacy flat-layout directory
// {root}/{device_id} exists, it is atomically migrated into the new
// {root}/{tenant_id}/{device_id} form first.
func (s *Store) Resolve(tenantID, deviceID string) (string, error) {
	dir := s.currentDir(tenantID, deviceID)

	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("authstore: stat %s: %w", dir, err)
	}

	if legacy := s.legacyDir(deviceID); dirExists(legacy) {
		if err := os.MkdirAll(filepath.Dir(dir), 0o700); err != nil {
			return "", fmt.Errorf("authstore: prepare tenant dir: %w", err)
		}
		if err := os.Rename(legacy, dir); err != nil {
			return "", fmt.Errorf("authstore: migrate legacy session %s: %w", legacy, err)
		}
		return dir, nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("authstore: create session dir %s: %w", dir, err)
	}
	return dir, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Identity is the paired account identity extracted from a device's
// primary credential file.
type Identity struct {
	JID  string
	Name string
}

// identityFileName is the conventional name the protocol client writes
// its primary identity record to within a device's session directory.
const identityFileName = "identity.json"

// Identity reads and extracts the paired identity from a device's
// credential directory, or (nil, nil) if no identity has been recorded
// yet (device not yet paired).
func (s *Store) Identity(tenantID, deviceID string) (*Identity, error) {
	dir := s.currentDir(tenantID, deviceID)
	data, err := os.ReadFile(filepath.Join(dir, identityFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authstore: read identity: %w", err)
	}

	id, err := parseIdentity(data)
	if err != nil {
		return nil, fmt.Errorf("authstore: parse identity: %w", err)
	}
	return id, nil
}

// WriteIdentity persists the paired identity after a successful pair.
// Writes are not atomic-renamed because the protocol client itself
// guarantees single-writer semantics within a process (spec.md §4.C).
func (s *Store) WriteIdentity(tenantID, deviceID string, id Identity) error {
	dir := s.currentDir(tenantID, deviceID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("authstore: write identity: %w", err)
	}
	data := encodeIdentity(id)
	if err := os.WriteFile(filepath.Join(dir, identityFileName), data, 0o600); err != nil {
		return fmt.Errorf("authstore: write identity: %w", err)
	}
	return nil
}

// Delete recursively removes a device's credential directory, as used
// by logout.
func (s *Store) Delete(tenantID, deviceID string) error {
	dir := s.currentDir(tenantID, deviceID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("authstore: delete %s: %w", dir, err)
	}
	return nil
}

// Discovered describes one session directory found by Scan.
type Discovered struct {
	TenantID string
	DeviceID string
	Dir      string
}

// Scan enumerates every existing session directory on startup for
// recovery, handling both the current {tenant}/{device} layout and any
// remaining legacy {device} layout.
func (s *Store) Scan() ([]Discovered, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("authstore: scan root: %w", err)
	}

	var found []Discovered
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub, err := os.ReadDir(filepath.Join(s.root, e.Name()))
		if err != nil {
			continue
		}

		hasDeviceChildren := false
		for _, se := range sub {
			if se.IsDir() {
				hasDeviceChildren = true
				found = append(found, Discovered{
					TenantID: e.Name(),
					DeviceID: se.Name(),
					Dir:      filepath.Join(s.root, e.Name(), se.Name()),
				})
			}
		}
		if !hasDeviceChildren {
			// A childless directory under root with no subdirectories is
			// itself a legacy {device_id} session directory.
			found = append(found, Discovered{
				TenantID: "",
				DeviceID: e.Name(),
				Dir:      filepath.Join(s.root, e.Name()),
			})
		}
	}
	return found, nil
}
