// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package storage persists the gateway state: resource histories, cached
// bundles, locator aliases and the relation graph, all as small YAML
// objects in a pluggable blob store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

// Service exposes the typed stores over one object store
type Service struct {
	store ObjectStore
}

// NewService wraps an object store
func NewService(store ObjectStore) *Service {
	return &Service{store: store}
}

// GetHistory loads the resource history of a URI; found is false for
// resources never persisted
func (s *Service) GetHistory(ctx context.Context, u uri.ResourceURI) (*model.ResourceHistory, bool, error) {
	data, err := s.store.Get(ctx, ResourceKey(u))
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var history model.ResourceHistory
	if err := yaml.Unmarshal(data, &history); err != nil {
		return nil, false, fmt.Errorf("resource history of %s: %w", u, err)
	}
	return &history, true, nil
}

// SetHistory persists the resource history of a URI
func (s *Service) SetHistory(ctx context.Context, u uri.ResourceURI, history *model.ResourceHistory) error {
	data, err := yaml.Marshal(history)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, ResourceKey(u), data)
}

// GetBundle loads a cached observation result
func (s *Service) GetBundle(ctx context.Context, u uri.ResourceURI, a uri.Affordance) (model.Bundle, bool, error) {
	data, err := s.store.Get(ctx, ObservedKey(u, a))
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	bundle, err := model.UnmarshalBundle(data)
	if err != nil {
		return nil, false, fmt.Errorf("cached bundle of %s%s: %w", u, a.Suffix(), err)
	}
	return bundle, true, nil
}

// SetBundle caches an observation result
func (s *Service) SetBundle(ctx context.Context, u uri.ResourceURI, a uri.Affordance, bundle model.Bundle) error {
	data, err := model.MarshalBundle(bundle)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, ObservedKey(u, a), data)
}

// DeleteBundle drops a cached observation result
func (s *Service) DeleteBundle(ctx context.Context, u uri.ResourceURI, a uri.Affordance) error {
	return s.store.Delete(ctx, ObservedKey(u, a))
}

// GetAlias looks up the persisted locator of an external reference string
func (s *Service) GetAlias(ctx context.Context, reference string) (locators.Locator, bool, error) {
	data, err := s.store.Get(ctx, AliasKey(reference))
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	loc, err := locators.Unmarshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("alias of %q: %w", reference, err)
	}
	return loc, true, nil
}

// SetAlias persists the locator behind an external reference string
func (s *Service) SetAlias(ctx context.Context, reference string, loc locators.Locator) error {
	data, err := locators.Marshal(loc)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, AliasKey(reference), data)
}

// SetRelations persists relations and their back-reference markers on
// every endpoint
func (s *Service) SetRelations(ctx context.Context, relations []model.Relation) error {
	return s.SetRelationsFiltered(ctx, relations, nil)
}

// SetRelationsFiltered persists relations and their back-reference
// markers; wantRef decides per endpoint whether the marker is written
// (nil writes all). Defs are written before refs so a ref never points
// at a missing def; a partially failed write can still leave a def
// without all of its refs, which an out-of-band repair job reconciles.
func (s *Service) SetRelationsFiltered(ctx context.Context, relations []model.Relation, wantRef func(uri.ResourceURI) bool) error {
	var errs *multierror.Error
	for _, r := range model.SortRelations(relations) {
		id := r.UniqueID()
		data, err := yaml.Marshal(r)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if err := s.store.Set(ctx, RelationDefKey(id), data); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("relation %s: %w", id, err))
			continue
		}
		for _, node := range r.Endpoints() {
			if wantRef != nil && !wantRef(node) {
				continue
			}
			if err := s.store.Set(ctx, RelationRefKey(node, id), nil); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("relation ref %s of %s: %w", id, node, err))
			}
		}
	}
	return errs.ErrorOrNil()
}

// GetRelation loads one relation body by ID
func (s *Service) GetRelation(ctx context.Context, id ident.RelationID) (model.Relation, bool, error) {
	data, err := s.store.Get(ctx, RelationDefKey(id))
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return model.Relation{}, false, nil
	}
	if err != nil {
		return model.Relation{}, false, err
	}
	var r model.Relation
	if err := yaml.Unmarshal(data, &r); err != nil {
		return model.Relation{}, false, fmt.Errorf("relation %s: %w", id, err)
	}
	return r, true, nil
}

// GetSyncState loads connector sync state stored under a name
func (s *Service) GetSyncState(ctx context.Context, name string) (string, bool, error) {
	data, err := s.store.Get(ctx, SyncStateKey(name))
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// SetSyncState persists connector sync state under a name
func (s *Service) SetSyncState(ctx context.Context, name, value string) error {
	return s.store.Set(ctx, SyncStateKey(name), []byte(value))
}

// RelationsOf lists the IDs of every relation touching a node, sorted
func (s *Service) RelationsOf(ctx context.Context, node uri.ResourceURI) ([]ident.RelationID, error) {
	prefix := RelationRefPrefix(node)
	keys, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	ids := make([]ident.RelationID, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ".txt")
		id, err := ident.DecodeRelationID(name)
		if err != nil {
			klog.Warningf("skipping malformed relation ref %q: %v", key, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
