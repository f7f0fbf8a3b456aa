// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

// resolveOutput is the printed shape of one resolved reference
type resolveOutput struct {
	Reference  string            `yaml:"reference"`
	URI        string            `yaml:"uri"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
	Aliases    []string          `yaml:"aliases,omitempty"`
}

func newResolveCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve REFERENCE...",
		Short: "Infer and resolve references to their merged resource views",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			g, err := newGateway(ctx, vip)
			if err != nil {
				return err
			}
			refs := make([]connectors.Reference, 0, len(args))
			for _, arg := range args {
				ref, err := connectors.ParseReference(arg)
				if err != nil {
					return err
				}
				refs = append(refs, ref)
			}
			resolved := g.coordinator.TryInferAndResolveLocators(ctx, g.requestContext(), refs)
			out := make([]resolveOutput, 0, len(resolved))
			for _, r := range resolved {
				out = append(out, resolveOutput{
					Reference:  r.Reference,
					URI:        r.Locator.ResourceURI().String(),
					Attributes: r.View.AllAttributes(),
					Aliases:    r.View.AllAliases(),
				})
			}
			if len(out) < len(refs) {
				klog.Warningf("%d of %d references did not resolve", len(refs)-len(out), len(refs))
			}
			data, err := yaml.Marshal(out)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func newObserveCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "observe URI$AFFORDANCE",
		Short: "Fetch one affordance of a resource and print its bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			au, err := uri.DecodeAffordanceURI(args[0])
			if err != nil {
				return err
			}
			g, err := newGateway(ctx, vip)
			if err != nil {
				return err
			}
			rctx := g.requestContext()
			loc, err := g.coordinator.TryInferLocator(ctx, rctx, connectors.RefResource(au.Resource()))
			if err != nil {
				return err
			}
			if loc == nil {
				return fmt.Errorf("no connector claims %s", au.Resource())
			}
			bundle, err := g.coordinator.Observe(ctx, rctx, loc, au.Affordance())
			if err != nil {
				return err
			}
			data, err := model.MarshalBundle(bundle)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func newRefreshCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Sync upstream change deltas and re-resolve the changed resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			g, err := newGateway(ctx, vip)
			if err != nil {
				return err
			}
			return g.coordinator.Refresh(ctx, g.requestContext())
		},
	}
}
