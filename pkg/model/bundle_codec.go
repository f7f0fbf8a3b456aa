// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// bundleKinds is the static decode table for the closed bundle sum
var bundleKinds = map[BundleKind]func() Bundle{
	BundleKindFragment:   func() Bundle { return &Fragment{} },
	BundleKindCollection: func() Bundle { return &BundleCollection{} },
	BundleKindFile:       func() Bundle { return &BundleFile{} },
	BundleKindPlain:      func() Bundle { return &BundlePlain{} },
}

type bundleEnvelope struct {
	Kind BundleKind `yaml:"kind"`
	Spec yaml.Node  `yaml:"spec"`
}

// MarshalBundle serializes a bundle with its kind discriminator
func MarshalBundle(b Bundle) ([]byte, error) {
	var spec yaml.Node
	if err := spec.Encode(b); err != nil {
		return nil, err
	}
	return yaml.Marshal(bundleEnvelope{Kind: b.BundleKind(), Spec: spec})
}

// UnmarshalBundle restores a bundle from its kind envelope
func UnmarshalBundle(data []byte) (Bundle, error) {
	var env bundleEnvelope
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	ctor, ok := bundleKinds[env.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown bundle kind %q", env.Kind)
	}
	b := ctor()
	if err := env.Spec.Decode(b); err != nil {
		return nil, fmt.Errorf("decoding %s bundle: %w", env.Kind, err)
	}
	return b, nil
}

// MarshalYAML encodes the download URL string form
func (d DownloadURL) MarshalYAML() (interface{}, error) { return d.value, nil }

// UnmarshalYAML decodes and re-validates the string form
func (d *DownloadURL) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	decoded, err := DecodeDownloadURL(s)
	if err != nil {
		return err
	}
	*d = decoded
	return nil
}
