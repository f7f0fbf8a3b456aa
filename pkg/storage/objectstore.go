// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

// ErrNotFound is returned by Get for keys with no object
type ErrNotFound string

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("no object stored under key %q", string(e))
}

//counterfeiter:generate . ObjectStore

// ObjectStore is the narrow blob-store contract the gateway persists
// through. Keys are opaque strings; values are small YAML documents or
// empty marker objects.
type ObjectStore interface {
	// Get returns the object bytes or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes or overwrites the object under key
	Set(ctx context.Context, key string, data []byte) error
	// List returns the keys under the given prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes the object; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}
