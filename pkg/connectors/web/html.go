// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// pageTitle extracts the document title from raw HTML: the og:title
// meta property when present, the <title> element otherwise. Returns
// "" when neither is found or the markup does not parse.
func pageTitle(data []byte) string {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	title := ""
	var walk func(*html.Node) string
	walk = func(n *html.Node) string {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				if attr(n, "property") == "og:title" {
					if v := strings.TrimSpace(attr(n, "content")); v != "" {
						return v
					}
				}
			case "title":
				if n.FirstChild != nil && title == "" {
					title = strings.TrimSpace(collapseSpace(n.FirstChild.Data))
				}
			case "body":
				// titles live in the head
				return ""
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if v := walk(child); v != "" {
				return v
			}
		}
		return ""
	}
	if v := walk(doc); v != "" {
		return v
	}
	return title
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
