// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package model_test

import (
	"testing"

	"github.com/nandam/nandam/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type optHolder struct {
	Name        model.Opt[string] `yaml:"name,omitempty"`
	Description model.Opt[string] `yaml:"description,omitempty"`
}

func TestOptThreeStatesSurviveYAML(t *testing.T) {
	in := optHolder{
		Name:        model.Set("hello"),
		Description: model.Null[string](),
	}
	data, err := yaml.Marshal(in)
	require.NoError(t, err)
	// the unset field does not appear at all
	assert.NotContains(t, string(data), "missing")

	var out optHolder
	require.NoError(t, yaml.Unmarshal(data, &out))
	v, ok := out.Name.Value()
	require.True(t, ok)
	assert.Equal(t, "hello", v)
	assert.True(t, out.Description.IsSet())
	assert.True(t, out.Description.IsNull())
}

func TestOptUnsetStaysUnset(t *testing.T) {
	var out optHolder
	require.NoError(t, yaml.Unmarshal([]byte("name: x\n"), &out))
	assert.True(t, out.Name.IsSet())
	assert.False(t, out.Description.IsSet())
	assert.False(t, out.Description.IsNull())
}

func TestMetadataDeltaDiffAndMerge(t *testing.T) {
	base := model.MetadataDelta{
		Name:        model.Set("a"),
		Description: model.Set("desc"),
	}
	update := model.MetadataDelta{
		Name:        model.Set("a"),    // unchanged, elided by diff
		Description: model.Set("new"),  // changed
		Revision:    model.Set("r2"),   // newly set
	}
	diff := update.Diff(base)
	assert.False(t, diff.Name.IsSet())
	assert.True(t, diff.Description.IsSet())
	assert.True(t, diff.Revision.IsSet())
	assert.False(t, diff.IsEmpty())

	merged := base.WithUpdate(diff)
	assert.Equal(t, "a", merged.Name.OrElse(""))
	assert.Equal(t, "new", merged.Description.OrElse(""))
	assert.Equal(t, "r2", merged.Revision.OrElse(""))

	// a second application of the same diff is a no-op
	again := update.Diff(merged)
	assert.True(t, again.IsEmpty())
}
