// Package htmltext extracts the visible text of fetched HTML pages.
package htmltext

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

var (
	pageSkip   = map[string]bool{"script": true, "style": true}
	socialSkip = map[string]bool{
		"script":   true,
		"style":    true,
		"nav":      true,
		"footer":   true,
		"iframe":   true,
		"noscript": true,
	}
)

// PageText returns the text of a web page with script and style removed.
// Lines are trimmed, split on double-space runs and the non-empty chunks
// joined with newlines.
func PageText(body []byte) (string, error) {
	root, err := parse(body)
	if err != nil {
		return "", err
	}

	var raw strings.Builder
	walk(root, pageSkip, func(text string) {
		raw.WriteString(text)
	})

	var chunks []string
	for _, line := range strings.Split(raw.String(), "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				chunks = append(chunks, phrase)
			}
		}
	}
	return strings.Join(chunks, "\n"), nil
}

// SocialText returns the text of a platform search page with navigation,
// footers, frames and scripts removed, one trimmed text node per line.
func SocialText(body []byte) (string, error) {
	root, err := parse(body)
	if err != nil {
		return "", err
	}

	var nodes []string
	walk(root, socialSkip, func(text string) {
		if text = strings.TrimSpace(text); text != "" {
			nodes = append(nodes, text)
		}
	})
	return strings.Join(nodes, "\n"), nil
}

func parse(body []byte) (*html.Node, error) {
	// scripting disabled so noscript content is parsed as markup
	root, err := html.ParseWithOptions(bytes.NewReader(body), html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return root, nil
}

func walk(n *html.Node, skip map[string]bool, emit func(string)) {
	switch n.Type {
	case html.TextNode:
		emit(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if skip[n.Data] {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, skip, emit)
	}
}
