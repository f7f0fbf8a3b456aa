// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package jira

import (
	"regexp"

	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/uri"
)

// conversationLinkPattern matches a wiki-markup link to a Teams message
// deep link, e.g. [Microsoft Teams conversation|https://teams.microsoft.com/l/message/...]
var conversationLinkPattern = regexp.MustCompile(`\[[^\]|]*\|\s*(https://teams\.microsoft\.com/l/message/[^\]\s]+)\s*\]`)

// teamsMessageURI extracts the Teams message resource behind a
// conversation-link comment. Deep links name the thread and a message id
// in the path; replies carry the root id in parentMessageId, in which
// case the path id addresses the reply.
func teamsMessageURI(teamsRealm, commentBody string) (uri.ResourceURI, bool) {
	m := conversationLinkPattern.FindStringSubmatch(commentBody)
	if m == nil {
		return uri.ResourceURI{}, false
	}
	wu, err := uri.ParseWebURL(m[1])
	if err != nil {
		return uri.ResourceURI{}, false
	}
	segs := wu.PathSegments()
	if len(segs) < 4 || segs[0] != "l" || segs[1] != "message" {
		return uri.ResourceURI{}, false
	}
	loc := &locators.MsTeamsMessage{
		RealmName: teamsRealm,
		ThreadID:  segs[2],
		MessageID: segs[3],
	}
	if groupID, ok := wu.GetQuery("groupId"); ok {
		loc.GroupID = groupID
	}
	if parent, ok := wu.GetQuery("parentMessageId"); ok && parent != loc.MessageID {
		loc.ReplyID = loc.MessageID
		loc.MessageID = parent
	}
	return loc.ResourceURI(), true
}
