// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package uri

import (
	"fmt"
	"strings"

	"github.com/nandam/nandam/pkg/ident"
)

// FragmentScheme prefixes blob keys inside fragments
const FragmentScheme = "self://"

// fragmentSelf marks the resource itself as the blob
const fragmentSelf = "~"

// FragmentURI is a blob key inside a fragment: self://{path} for an embedded
// blob or self://~ when the whole resource is the blob.
type FragmentURI struct {
	// empty means self
	path string
}

// SelfFragmentURI addresses the resource itself
func SelfFragmentURI() FragmentURI { return FragmentURI{} }

// NewFragmentURI addresses an embedded blob by path
func NewFragmentURI(path ident.FilePath) FragmentURI {
	return FragmentURI{path: path.String()}
}

// DecodeFragmentURI parses a self:// blob key
func DecodeFragmentURI(s string) (FragmentURI, error) {
	rest, ok := strings.CutPrefix(s, FragmentScheme)
	if !ok {
		return FragmentURI{}, fmt.Errorf("fragment URI %q does not start with %s", s, FragmentScheme)
	}
	if rest == fragmentSelf {
		return FragmentURI{}, nil
	}
	path, err := ident.DecodeFilePath(rest)
	if err != nil {
		return FragmentURI{}, fmt.Errorf("fragment URI %q: %w", s, err)
	}
	return FragmentURI{path: path.String()}, nil
}

func (f FragmentURI) String() string {
	if f.path == "" {
		return FragmentScheme + fragmentSelf
	}
	return FragmentScheme + f.path
}

// IsSelf reports whether the key addresses the resource itself
func (f FragmentURI) IsSelf() bool { return f.path == "" }

// Path returns the blob path, empty for self
func (f FragmentURI) Path() string { return f.path }
