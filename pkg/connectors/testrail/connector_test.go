// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package testrail

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/downloader"
	"github.com/nandam/nandam/pkg/downloader/downloaderfakes"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

func apiFake(t *testing.T, responses map[string]string) *downloaderfakes.FakeInterface {
	t.Helper()
	return &downloaderfakes.FakeInterface{
		FetchJSONStub: func(ctx context.Context, u *uri.WebURL, headers http.Header, out interface{}) (http.Header, error) {
			for fragment, body := range responses {
				if strings.Contains(u.String(), fragment) {
					return nil, json.Unmarshal([]byte(body), out)
				}
			}
			return nil, downloader.UnavailableError(u.String() + " is unavailable (status 404)")
		},
	}
}

func requestContext(dl *downloaderfakes.FakeInterface) *connectors.Context {
	return connectors.NewContext(dl, nil, nil)
}

func TestLocatorFromViewURLs(t *testing.T) {
	c := NewConnector(Options{Realm: "testrail", Domain: "testrail.example.com"})
	rctx := requestContext(apiFake(t, nil))

	wu, err := uri.ParseWebURL("https://testrail.example.com/index.php?/cases/view/123")
	require.NoError(t, err)
	loc, err := c.Locator(context.Background(), rctx, connectors.RefWeb(wu))
	require.NoError(t, err)
	tc, ok := loc.(*locators.TestRailCase)
	require.True(t, ok)
	assert.Equal(t, "123", tc.CaseID)
	assert.Equal(t, "ndk://testrail/case/123", tc.ResourceURI().String())

	wu, err = uri.ParseWebURL("https://testrail.example.com/index.php?/runs/view/77")
	require.NoError(t, err)
	loc, err = c.Locator(context.Background(), rctx, connectors.RefWeb(wu))
	require.NoError(t, err)
	run, ok := loc.(*locators.TestRailRun)
	require.True(t, ok)
	assert.Equal(t, "77", run.RunID)

	wu, err = uri.ParseWebURL("https://testrail.example.com/index.php?/dashboard")
	require.NoError(t, err)
	loc, err = c.Locator(context.Background(), rctx, connectors.RefWeb(wu))
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestResolveCase(t *testing.T) {
	c := NewConnector(Options{Realm: "testrail", Domain: "testrail.example.com"})
	dl := apiFake(t, map[string]string{
		"get_case/123": `{"id": 123, "title": "Login succeeds", "updated_on": 1700000000}`,
	})
	l := &locators.TestRailCase{RealmName: "testrail", Domain: "testrail.example.com", CaseID: "123"}

	res, err := c.Resolve(context.Background(), requestContext(dl), l, nil)
	require.NoError(t, err)
	assert.True(t, res.Cache)
	assert.Equal(t, "Login succeeds", res.Delta.Metadata.Name.OrElse(""))
	assert.Equal(t, "1700000000", res.Delta.Metadata.Revision.OrElse(""))
}

func TestObserveCaseBody(t *testing.T) {
	c := NewConnector(Options{Realm: "testrail", Domain: "testrail.example.com"})
	dl := apiFake(t, map[string]string{
		"get_case/123": `{
			"id": 123, "title": "Login succeeds", "refs": "PROJ-42",
			"custom_preconds": "A registered user exists.",
			"custom_steps": "1. Open the login page\n2. Submit valid credentials",
			"custom_expected": "The dashboard appears."
		}`,
	})
	l := &locators.TestRailCase{RealmName: "testrail", Domain: "testrail.example.com", CaseID: "123"}

	res, err := c.Observe(context.Background(), requestContext(dl), l, uri.AffordanceBody, nil)
	require.NoError(t, err)
	fragment, ok := res.Bundle.(*model.Fragment)
	require.True(t, ok)
	assert.Contains(t, fragment.Text, "# C123: Login succeeds")
	assert.Contains(t, fragment.Text, "References: PROJ-42")
	assert.Contains(t, fragment.Text, "## Steps")
	assert.Contains(t, fragment.Text, "## Expected Result")
	assert.False(t, res.Post.Cache)
}

func TestObserveRunBody(t *testing.T) {
	c := NewConnector(Options{Realm: "testrail", Domain: "testrail.example.com"})
	dl := apiFake(t, map[string]string{
		"get_run/77": `{"id": 77, "name": "Sprint 12 regression", "is_completed": true, "passed_count": 40, "failed_count": 2, "blocked_count": 1, "untested_count": 0}`,
	})
	l := &locators.TestRailRun{RealmName: "testrail", Domain: "testrail.example.com", RunID: "77"}

	res, err := c.Observe(context.Background(), requestContext(dl), l, uri.AffordanceBody, nil)
	require.NoError(t, err)
	fragment, ok := res.Bundle.(*model.Fragment)
	require.True(t, ok)
	assert.Contains(t, fragment.Text, "# R77: Sprint 12 regression")
	assert.Contains(t, fragment.Text, "State: completed")
	assert.Contains(t, fragment.Text, "40 passed, 2 failed, 1 blocked, 0 untested")
}
