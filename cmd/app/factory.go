// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/spf13/viper"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/connectors/confluence"
	"github.com/nandam/nandam/pkg/connectors/georges"
	"github.com/nandam/nandam/pkg/connectors/github"
	"github.com/nandam/nandam/pkg/connectors/gitlab"
	"github.com/nandam/nandam/pkg/connectors/jira"
	"github.com/nandam/nandam/pkg/connectors/microsoft"
	"github.com/nandam/nandam/pkg/connectors/public"
	"github.com/nandam/nandam/pkg/connectors/testrail"
	"github.com/nandam/nandam/pkg/connectors/web"
	"github.com/nandam/nandam/pkg/coordinator"
	"github.com/nandam/nandam/pkg/downloader"
	"github.com/nandam/nandam/pkg/storage"
)

// options is the flag/environment surface, unmarshalled from viper
type options struct {
	ConfigPath  string            `mapstructure:"config"`
	CacheDir    string            `mapstructure:"cache-dir"`
	ParserURL   string            `mapstructure:"parser-url"`
	Storage     string            `mapstructure:"storage"`
	StorageDir  string            `mapstructure:"storage-dir"`
	S3Bucket    string            `mapstructure:"s3-bucket"`
	S3Region    string            `mapstructure:"s3-region"`
	S3Prefix    string            `mapstructure:"s3-prefix"`
	Credentials map[string]string `mapstructure:"credentials"`
}

// gateway bundles the assembled collaborators of one invocation
type gateway struct {
	coordinator *coordinator.Service
	store       *storage.Service
	dl          downloader.Interface
	creds       map[string]connectors.Credential
}

func newGateway(ctx context.Context, vip *viper.Viper) (*gateway, error) {
	var opts options
	if err := vip.Unmarshal(&opts); err != nil {
		return nil, err
	}
	config, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	registry, err := buildRegistry(ctx, config)
	if err != nil {
		return nil, err
	}
	objects, err := newObjectStore(opts)
	if err != nil {
		return nil, err
	}
	creds := map[string]connectors.Credential{}
	for realm, token := range opts.Credentials {
		creds[realm] = connectors.Credential{Token: token}
	}
	return &gateway{
		coordinator: coordinator.NewService(registry),
		store:       storage.NewService(objects),
		dl:          downloader.NewClient(opts.CacheDir, opts.ParserURL),
		creds:       creds,
	}, nil
}

// requestContext starts one gateway request
func (g *gateway) requestContext() *connectors.Context {
	return connectors.NewContext(g.dl, g.store, g.creds)
}

func newObjectStore(opts options) (storage.ObjectStore, error) {
	switch opts.Storage {
	case "fs":
		return storage.NewFSStore(opts.StorageDir), nil
	case "s3":
		if opts.S3Bucket == "" {
			return nil, fmt.Errorf("the s3 storage backend needs --s3-bucket")
		}
		sess, err := session.NewSession(&aws.Config{Region: aws.String(opts.S3Region)})
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(sess, opts.S3Bucket, opts.S3Prefix), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q, expected fs or s3", opts.Storage)
}

// buildRegistry instantiates the configured connectors in dispatch
// order: domain-scoped connectors as listed, the public connector, the
// catch-all web connector last
func buildRegistry(ctx context.Context, config *Config) (*connectors.Registry, error) {
	// one pacer serialises Graph traffic across all Microsoft connectors
	pacer := microsoft.NewPacer()
	teamsRealm := chatRealm(config)

	ordered := make([]connectors.Connector, 0, len(config.Connectors)+2)
	for _, cc := range config.Connectors {
		switch cc.Kind {
		case KindGitHub:
			ordered = append(ordered, github.NewConnector(ctx, github.Options{
				Realm:       cc.Realm,
				PublicToken: cc.PublicToken,
			}, nil))
		case KindGitLab:
			ordered = append(ordered, gitlab.NewConnector(gitlab.Options{
				Realm:       cc.Realm,
				Domain:      cc.Domain,
				PublicToken: cc.PublicToken,
			}))
		case KindConfluence:
			ordered = append(ordered, confluence.NewConnector(confluence.Options{
				Realm:       cc.Realm,
				Domain:      cc.Domain,
				PublicToken: cc.PublicToken,
			}))
		case KindJira:
			ordered = append(ordered, jira.NewConnector(jira.Options{
				Realm:          cc.Realm,
				Domain:         cc.Domain,
				PublicUsername: cc.PublicUsername,
				PublicToken:    cc.PublicToken,
				TeamsRealm:     teamsRealm,
			}))
		case KindMicrosoftMy:
			ordered = append(ordered, microsoft.NewMyConnector(microsoft.Options{
				Realm:  cc.Realm,
				Domain: cc.Domain,
				Pacer:  pacer,
			}))
		case KindMicrosoftOrg:
			ordered = append(ordered, microsoft.NewOrgConnector(microsoft.Options{
				Realm:              cc.Realm,
				Domain:             cc.Domain,
				TenantID:           cc.TenantID,
				PublicClientID:     cc.PublicClientID,
				PublicClientSecret: cc.PublicClientSecret,
				InternalSiteIDs:    cc.InternalSiteIDs,
				RefreshSiteIDs:     cc.RefreshSiteIDs,
				Pacer:              pacer,
			}))
		case KindTestRail:
			ordered = append(ordered, testrail.NewConnector(testrail.Options{
				Realm:          cc.Realm,
				Domain:         cc.Domain,
				PublicUsername: cc.PublicUsername,
				PublicPassword: cc.PublicPassword,
			}))
		case KindGeorges:
			ordered = append(ordered, georges.NewConnector(georges.Options{
				Realm:  cc.Realm,
				Domain: cc.Domain,
			}))
		default:
			return nil, fmt.Errorf("unknown connector kind %q", cc.Kind)
		}
	}
	ordered = append(ordered, public.NewConnector(), web.NewConnector())
	return connectors.NewRegistry(ordered...)
}

// chatRealm picks the realm Teams conversation links resolve into:
// the organization Graph connector when configured, the personal one
// otherwise. Empty disables the translation.
func chatRealm(config *Config) string {
	my := ""
	for _, cc := range config.Connectors {
		switch cc.Kind {
		case KindMicrosoftOrg:
			return cc.Realm
		case KindMicrosoftMy:
			if my == "" {
				my = cc.Realm
			}
		}
	}
	return my
}
