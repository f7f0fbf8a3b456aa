// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package connectors defines the per-backend connector contract and the
// ordered registry the coordinator dispatches through.
package connectors

import (
	"context"
	"fmt"

	"github.com/nandam/nandam/pkg/downloader"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

// UnavailableError aborts a lookup: the reference belongs to this
// connector but the item is gone, forbidden or otherwise unreadable
type UnavailableError = downloader.UnavailableError

// BadRequestError marks a reference or observable the caller should not
// have asked for
type BadRequestError string

func (e BadRequestError) Error() string { return string(e) }

// ResolveResult is the outcome of a metadata resolve. Delta carries the
// metadata update and the expired observables; Cache asks the caller to
// persist the updated history.
type ResolveResult struct {
	Delta model.ResourceDelta
	Cache bool
}

// PostFlags tell the caller which post-processing steps apply to an
// observation result
type PostFlags struct {
	// Cache the bundle in the observed store
	Cache bool
	// ExtractDescription derives a description label from the content
	ExtractDescription bool
	// LinkRelations generates link relations from in-body markdown links
	LinkRelations bool
	// ParentRelations generates parent relations from collection results
	ParentRelations bool
}

// ObserveResult is the outcome of a content observation
type ObserveResult struct {
	Bundle    model.Bundle
	Delta     *model.ResourceDelta
	Relations []model.Relation
	Post      PostFlags
}

//counterfeiter:generate . Connector

// Connector adapts one backend realm to the locator/resolve/observe
// lifecycle. Implementations are value-typed; request-scoped state lives
// in the Context.
type Connector interface {
	// Realm returns the realm this connector serves
	Realm() string
	// Locator parses a reference into a concrete locator. A nil locator
	// with a nil error defers to the next connector; UnavailableError
	// aborts the lookup.
	Locator(ctx context.Context, rctx *Context, ref Reference) (locators.Locator, error)
	// Resolve validates access and computes a metadata delta. It may hit
	// a lightweight metadata endpoint but must not fetch full content.
	Resolve(ctx context.Context, rctx *Context, loc locators.Locator, cached *model.ResourceView) (*ResolveResult, error)
	// Observe fetches the content behind one observable
	Observe(ctx context.Context, rctx *Context, loc locators.Locator, observable uri.Affordance, resolved *model.ResourceView) (*ObserveResult, error)
}

// Refresher is implemented by connectors that sync change deltas from
// upstream and report which resources need re-resolution
type Refresher interface {
	Refresh(ctx context.Context, rctx *Context) ([]locators.Locator, error)
}

// ErrUnsupportedObservable builds the uniform error for an observable a
// locator variant does not carry
func ErrUnsupportedObservable(loc locators.Locator, observable uri.Affordance) error {
	return BadRequestError(fmt.Sprintf("%s does not support %s", loc.ResourceURI(), observable.Suffix()))
}
