// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package microsoft

import (
	"context"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

func (b messageBody) mime() ident.MimeType {
	if strings.EqualFold(b.ContentType, "text") {
		return "text/plain"
	}
	return "text/html"
}

type outlookMessage struct {
	ID           string      `json:"id"`
	Subject      string      `json:"subject"`
	WebLink      string      `json:"webLink"`
	LastModified time.Time   `json:"lastModifiedDateTime"`
	Received     time.Time   `json:"receivedDateTime"`
	Body         messageBody `json:"body"`
	From         struct {
		EmailAddress struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
}

func (c *Connector) fetchMessage(ctx context.Context, rctx *connectors.Context, l *locators.MsOutlookMessage) (*outlookMessage, error) {
	var msg outlookMessage
	if err := c.getJSON(ctx, rctx, l.ContentURL().String(), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Connector) resolveMessage(ctx context.Context, rctx *connectors.Context, l *locators.MsOutlookMessage, cached *model.ResourceView) (*connectors.ResolveResult, error) {
	msg, err := c.fetchMessage(ctx, rctx, l)
	if err != nil {
		return nil, err
	}
	updated := &locators.MsOutlookMessage{RealmName: c.realm, Mailbox: l.Mailbox, MessageID: l.MessageID, WebLink: msg.WebLink}
	revision := msg.LastModified.UTC().Format(time.RFC3339)
	delta := model.ResourceDelta{
		RefreshedAt: time.Now().UTC(),
		Locator:     updated,
		Metadata: model.MetadataDelta{
			Name:      model.Set(msg.Subject),
			MimeType:  model.Set(msg.Body.mime()),
			Revision:  model.Set(revision),
			UpdatedAt: model.Set(msg.LastModified),
			Affordances: model.Set([]model.AffordanceInfo{
				{Affordance: uri.AffordanceBody, MimeType: model.Set(msg.Body.mime())},
			}),
		},
	}
	if msg.WebLink != "" {
		delta.Metadata.CitationURL = model.Set(msg.WebLink)
	}
	if cached != nil {
		if prev, ok := cached.Metadata.Revision.Value(); ok && prev != revision {
			delta.Expired = []uri.Affordance{uri.AffordanceBody}
		}
	}
	return &connectors.ResolveResult{Delta: delta, Cache: true}, nil
}

func (c *Connector) observeMessage(ctx context.Context, rctx *connectors.Context, l *locators.MsOutlookMessage) (*connectors.ObserveResult, error) {
	msg, err := c.fetchMessage(ctx, rctx, l)
	if err != nil {
		return nil, err
	}
	resp, err := rctx.Downloader.ReadBlob(ctx, msg.Subject+".html", msg.Body.mime(), []byte(msg.Body.Content), nil)
	if err != nil {
		return nil, err
	}
	text := "# " + msg.Subject + "\n\nFrom: " + msg.From.EmailAddress.Name + " <" + msg.From.EmailAddress.Address + ">\n\n" + model.TrimText(resp.Text)
	return &connectors.ObserveResult{
		Bundle:    &model.Fragment{Mode: model.FragmentMarkdown, Text: text, Blobs: resp.Blobs},
		Relations: c.messageAttachmentRelations(ctx, rctx, l),
		Post: connectors.PostFlags{
			Cache:              true,
			ExtractDescription: true,
		},
	}, nil
}

type outlookAttachment struct {
	Name string `json:"name"`
	// SourceURL is set on reference attachments only
	SourceURL string `json:"sourceUrl"`
}

// messageAttachmentRelations resolves reference attachments into
// attachment relations. Inline file attachments carry their bytes in
// the message and address no standalone resource; listing failures are
// best-effort.
func (c *Connector) messageAttachmentRelations(ctx context.Context, rctx *connectors.Context, l *locators.MsOutlookMessage) []model.Relation {
	var page struct {
		Value []outlookAttachment `json:"value"`
	}
	if err := c.getJSON(ctx, rctx, l.ContentURL().String()+"/attachments", &page); err != nil {
		klog.V(2).Infof("listing attachments of %s failed: %v", l.ResourceURI(), err)
		return nil
	}
	var relations []model.Relation
	for _, attachment := range page.Value {
		if attachment.SourceURL == "" {
			continue
		}
		wu, err := uri.ParseWebURL(attachment.SourceURL)
		if err != nil {
			continue
		}
		item, err := c.itemFromShareURL(ctx, rctx, wu)
		if err != nil {
			klog.V(2).Infof("skipping unresolvable attachment %q of %s: %v", attachment.Name, l.ResourceURI(), err)
			continue
		}
		relations = append(relations, model.NewMisc("attachment", l.ResourceURI(), c.driveLocator(item).ResourceURI()))
	}
	return relations
}

type teamsMessage struct {
	ID           string      `json:"id"`
	Subject      string      `json:"subject"`
	LastModified time.Time   `json:"lastModifiedDateTime"`
	Created      time.Time   `json:"createdDateTime"`
	Body         messageBody `json:"body"`
	From         struct {
		User struct {
			DisplayName string `json:"displayName"`
		} `json:"user"`
	} `json:"from"`
	Attachments []struct {
		ContentURL string `json:"contentUrl"`
		Name       string `json:"name"`
	} `json:"attachments"`
}

// displayName derives a human name for a message without a subject
func (m *teamsMessage) displayName() string {
	if m.Subject != "" {
		return m.Subject
	}
	return "Message from " + m.From.User.DisplayName
}

func (c *Connector) fetchTeamsMessage(ctx context.Context, rctx *connectors.Context, l *locators.MsTeamsMessage) (*teamsMessage, error) {
	var msg teamsMessage
	if err := c.getJSON(ctx, rctx, l.ContentURL().String(), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Connector) resolveTeamsMessage(ctx context.Context, rctx *connectors.Context, l *locators.MsTeamsMessage, cached *model.ResourceView) (*connectors.ResolveResult, error) {
	msg, err := c.fetchTeamsMessage(ctx, rctx, l)
	if err != nil {
		return nil, err
	}
	revision := msg.LastModified.UTC().Format(time.RFC3339)
	delta := model.ResourceDelta{
		RefreshedAt: time.Now().UTC(),
		Locator:     l,
		Metadata: model.MetadataDelta{
			Name:        model.Set(msg.displayName()),
			MimeType:    model.Set(msg.Body.mime()),
			CitationURL: model.Set(l.CitationURL().String()),
			Revision:    model.Set(revision),
			UpdatedAt:   model.Set(msg.LastModified),
			Affordances: model.Set([]model.AffordanceInfo{
				{Affordance: uri.AffordanceBody, MimeType: model.Set(msg.Body.mime())},
			}),
		},
	}
	if cached != nil {
		if prev, ok := cached.Metadata.Revision.Value(); ok && prev != revision {
			delta.Expired = []uri.Affordance{uri.AffordanceBody}
		}
	}
	return &connectors.ResolveResult{Delta: delta, Cache: true}, nil
}

func (c *Connector) observeTeamsMessage(ctx context.Context, rctx *connectors.Context, l *locators.MsTeamsMessage) (*connectors.ObserveResult, error) {
	msg, err := c.fetchTeamsMessage(ctx, rctx, l)
	if err != nil {
		return nil, err
	}
	resp, err := rctx.Downloader.ReadBlob(ctx, msg.displayName()+".html", msg.Body.mime(), []byte(msg.Body.Content), nil)
	if err != nil {
		return nil, err
	}
	text := "# " + msg.displayName() + "\n\n" + model.TrimText(resp.Text)
	result := &connectors.ObserveResult{
		// chat content changes too often to be worth caching
		Bundle: &model.Fragment{Mode: model.FragmentMarkdown, Text: text, Blobs: resp.Blobs},
		Post:   connectors.PostFlags{ExtractDescription: true},
	}
	for _, attachment := range msg.Attachments {
		if attachment.ContentURL == "" {
			continue
		}
		wu, err := uri.ParseWebURL(attachment.ContentURL)
		if err != nil {
			continue
		}
		item, err := c.itemFromShareURL(ctx, rctx, wu)
		if err != nil {
			klog.V(2).Infof("skipping unresolvable attachment %q of %s: %v", attachment.Name, l.ResourceURI(), err)
			continue
		}
		result.Relations = append(result.Relations, model.NewMisc("attachment", l.ResourceURI(), c.driveLocator(item).ResourceURI()))
	}
	return result, nil
}
