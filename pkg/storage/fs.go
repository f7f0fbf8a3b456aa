// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// FSStore keeps objects as files under a root directory. The key becomes
// the file path relative to the root, so key layout and directory layout
// coincide and out-of-band tooling can browse the store directly.
type FSStore struct {
	fs   afero.Fs
	root string
}

// NewFSStore stores objects under root on the OS filesystem
func NewFSStore(root string) *FSStore {
	return &FSStore{fs: afero.NewOsFs(), root: root}
}

// NewMemoryStore is an in-memory store for tests
func NewMemoryStore() *FSStore {
	return &FSStore{fs: afero.NewMemMapFs(), root: "/"}
}

func (s *FSStore) keyPath(key string) string {
	return path.Join(s.root, key)
}

// Get implements ObjectStore
func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.keyPath(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound(key)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set implements ObjectStore
func (s *FSStore) Set(_ context.Context, key string, data []byte) error {
	p := s.keyPath(key)
	if err := s.fs.MkdirAll(path.Dir(p), 0755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, p, data, 0644)
}

// List implements ObjectStore
func (s *FSStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := afero.Walk(s.fs, s.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		key := strings.TrimPrefix(strings.TrimPrefix(p, s.root), "/")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete implements ObjectStore
func (s *FSStore) Delete(_ context.Context, key string) error {
	err := s.fs.Remove(s.keyPath(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
