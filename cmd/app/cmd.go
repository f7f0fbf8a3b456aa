// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package app assembles the gateway command line: connector
// configuration, storage and downloader wiring, and the resolve,
// observe and refresh subcommands.
package app

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"github.com/nandam/nandam/cmd/version"
)

var vip = viper.New()

// NewCommand creates the root command and propagates the context to the
// subcommand closures
func NewCommand(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nandam",
		Short: "Federated knowledge-resource gateway",
		Long:  "Resolves web URLs, resource URIs and external identifiers across the configured backends and serves their content as uniform bundles.",
	}
	configureFlags(cmd)

	cmd.AddCommand(newResolveCmd(ctx))
	cmd.AddCommand(newObserveCmd(ctx))
	cmd.AddCommand(newRefreshCmd(ctx))
	cmd.AddCommand(version.NewVersionCmd())

	klog.InitFlags(nil)
	addGoFlags(cmd)
	return cmd
}

func configureFlags(command *cobra.Command) {
	home := ""
	if userHomeDir, err := os.UserHomeDir(); err == nil {
		home = filepath.Join(userHomeDir, ".nandam")
	}
	pf := command.PersistentFlags()

	pf.String("config", filepath.Join(home, "connectors.yml"),
		"Connector configuration path.")
	_ = vip.BindPFlag("config", pf.Lookup("config"))

	pf.String("cache-dir", filepath.Join(home, "cache"),
		"Cache directory for the HTTP download cache.")
	_ = vip.BindPFlag("cache-dir", pf.Lookup("cache-dir"))

	pf.String("parser-url", "",
		"Documents-parser subservice endpoint. Without it only pre-parsed content can be observed.")
	_ = vip.BindPFlag("parser-url", pf.Lookup("parser-url"))

	pf.String("storage", "fs",
		"Storage backend, one of fs or s3.")
	_ = vip.BindPFlag("storage", pf.Lookup("storage"))

	pf.String("storage-dir", filepath.Join(home, "store"),
		"Object store root for the fs backend.")
	_ = vip.BindPFlag("storage-dir", pf.Lookup("storage-dir"))

	pf.String("s3-bucket", "",
		"Bucket for the s3 backend.")
	_ = vip.BindPFlag("s3-bucket", pf.Lookup("s3-bucket"))

	pf.String("s3-region", "",
		"Region for the s3 backend.")
	_ = vip.BindPFlag("s3-region", pf.Lookup("s3-region"))

	pf.String("s3-prefix", "",
		"Key prefix for the s3 backend.")
	_ = vip.BindPFlag("s3-prefix", pf.Lookup("s3-prefix"))

	pf.StringToString("credentials", map[string]string{},
		"Per-realm bearer token overrides in the form realm=token.")
	_ = vip.BindPFlag("credentials", pf.Lookup("credentials"))
}

// addGoFlags exposes the klog flags on the root command
func addGoFlags(rootCmd *cobra.Command) {
	flag.CommandLine.VisitAll(func(gf *flag.Flag) {
		rootCmd.PersistentFlags().AddGoFlag(gf)
	})
}
