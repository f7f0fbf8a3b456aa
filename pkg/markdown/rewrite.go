// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package markdown

import (
	"regexp"
	"strings"
)

// inlineLinkPattern matches inline links and image embeds; destinations
// with nested parentheses are not rewritten
var inlineLinkPattern = regexp.MustCompile(`(!?)\[([^\]]*)\]\(([^()\s]+)(\s+"[^"]*")?\)`)

// RewriteDestination maps one link destination to its replacement; a
// false return keeps the original
type RewriteDestination func(destination string, isImage bool) (string, bool)

// RewriteLinks rewrites inline link and image destinations in place,
// leaving the rest of the document byte-identical
func RewriteLinks(source []byte, rewrite RewriteDestination) []byte {
	return inlineLinkPattern.ReplaceAllFunc(source, func(match []byte) []byte {
		groups := inlineLinkPattern.FindSubmatch(match)
		isImage := len(groups[1]) > 0
		dest := string(groups[3])
		replacement, ok := rewrite(dest, isImage)
		if !ok || replacement == dest {
			return match
		}
		var b strings.Builder
		b.Write(groups[1])
		b.WriteByte('[')
		b.Write(groups[2])
		b.WriteString("](")
		b.WriteString(replacement)
		b.Write(groups[4])
		b.WriteByte(')')
		return []byte(b.String())
	})
}
