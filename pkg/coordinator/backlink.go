// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package coordinator

import "strings"

// ShouldBacklink reports whether relation back-reference markers are
// written for endpoints in a realm. Catch-all www resources are
// excluded: their URIs are content digests with heavy churn, so
// back-references would accumulate without ever being queried.
//
// TODO: the exclusion is a substring match against "www," and therefore
// also excludes any realm that is itself a substring of it ("w", "ww");
// confirm the intended realm list with the graph maintainers before
// tightening this to an equality check.
func ShouldBacklink(realm string) bool {
	return !strings.Contains("www,", realm)
}
