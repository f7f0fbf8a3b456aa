// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Connector kinds accepted in connectors.yml
const (
	KindGitHub       = "github"
	KindGitLab       = "gitlab"
	KindConfluence   = "confluence"
	KindJira         = "jira"
	KindMicrosoftMy  = "microsoft-my"
	KindMicrosoftOrg = "microsoft-org"
	KindTestRail     = "testrail"
	KindGeorges      = "georges"
)

// Config is the connectors.yml shape. Listed order is dispatch order;
// the public and catch-all web connectors are appended automatically.
type Config struct {
	Connectors []ConnectorConfig `yaml:"connectors"`
}

// ConnectorConfig declares one connector instance, discriminated on
// kind. Public credentials configured here serve unauthenticated
// requests; per-request credentials override them.
type ConnectorConfig struct {
	Kind           string `yaml:"kind"`
	Realm          string `yaml:"realm"`
	Domain         string `yaml:"domain,omitempty"`
	PublicUsername string `yaml:"public_username,omitempty"`
	PublicToken    string `yaml:"public_token,omitempty"`
	PublicPassword string `yaml:"public_password,omitempty"`

	// Graph connectors only
	TenantID           string   `yaml:"tenant_id,omitempty"`
	PublicClientID     string   `yaml:"public_client_id,omitempty"`
	PublicClientSecret string   `yaml:"public_client_secret,omitempty"`
	InternalSiteIDs    []string `yaml:"internal_site_ids,omitempty"`
	RefreshSiteIDs     []string `yaml:"refresh_site_ids,omitempty"`
}

// domainRequired lists the kinds that address one backend deployment
var domainRequired = map[string]bool{
	KindGitLab:       true,
	KindConfluence:   true,
	KindJira:         true,
	KindMicrosoftMy:  true,
	KindMicrosoftOrg: true,
	KindTestRail:     true,
	KindGeorges:      true,
}

var knownKinds = map[string]bool{
	KindGitHub:       true,
	KindGitLab:       true,
	KindConfluence:   true,
	KindJira:         true,
	KindMicrosoftMy:  true,
	KindMicrosoftOrg: true,
	KindTestRail:     true,
	KindGeorges:      true,
}

// LoadConfig reads and validates connectors.yml. A missing file yields
// an empty configuration: only the public and web connectors serve.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for i, cc := range config.Connectors {
		if !knownKinds[cc.Kind] {
			return nil, fmt.Errorf("%s: connector %d has unknown kind %q", path, i, cc.Kind)
		}
		if cc.Realm == "" {
			return nil, fmt.Errorf("%s: %s connector %d declares no realm", path, cc.Kind, i)
		}
		if domainRequired[cc.Kind] && cc.Domain == "" {
			return nil, fmt.Errorf("%s: %s connector %q declares no domain", path, cc.Kind, cc.Realm)
		}
	}
	return &config, nil
}
