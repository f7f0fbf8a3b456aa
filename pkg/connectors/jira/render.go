// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package jira

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// wikiLinkPattern matches the wiki-markup link form [label|url]
var wikiLinkPattern = regexp.MustCompile(`\[([^\]|]*)\|([^\]\s]+)\s*\]`)

// renderWikiText converts the link syntax of Jira wiki markup to
// markdown; the remaining markup reads fine as plain text
func renderWikiText(text string) string {
	return wikiLinkPattern.ReplaceAllString(text, "[$1]($2)")
}

func renderCommentDate(created string) string {
	if t, err := time.Parse("2006-01-02T15:04:05.000-0700", created); err == nil {
		return t.UTC().Format("2006-01-02")
	}
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		return t.UTC().Format("2006-01-02")
	}
	return created
}

// renderIssue lays the issue out as one markdown fragment: title,
// status, description, then comments in their original order
func renderIssue(key string, info *issueInfo, comments []issueComment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: %s\n", key, info.Fields.Summary)
	if info.Fields.Status.Name != "" {
		fmt.Fprintf(&b, "\nStatus: %s\n", info.Fields.Status.Name)
	}
	if description := strings.TrimSpace(info.Fields.Description); description != "" {
		b.WriteString("\n")
		b.WriteString(renderWikiText(description))
		b.WriteString("\n")
	}
	if len(comments) > 0 {
		b.WriteString("\n## Comments\n")
		for _, comment := range comments {
			fmt.Fprintf(&b, "\n### %s (%s)\n\n", comment.Author.DisplayName, renderCommentDate(comment.Created))
			b.WriteString(renderWikiText(strings.TrimSpace(comment.Body)))
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}
