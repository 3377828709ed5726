package jira

import (
	"encoding/json"
	"strings"
)

// Node is an Atlassian Document Format node.
type Node struct {
	Type    string `json:"type"`
	Version int    `json:"version,omitempty"`
	Text    string `json:"text,omitempty"`
	Content []Node `json:"content,omitempty"`
}

// DocumentFromText wraps plain text in an ADF document with one paragraph
// per line. Empty text yields nil so the comment is omitted.
func DocumentFromText(text string) *Node {
	text = strings.TrimRight(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	doc := &Node{Type: "doc", Version: 1}
	for _, line := range strings.Split(text, "\n") {
		p := Node{Type: "paragraph"}
		if line != "" {
			p.Content = []Node{{Type: "text", Text: line}}
		}
		doc.Content = append(doc.Content, p)
	}
	return doc
}

// TextFromDocument flattens an ADF comment to plain text. Older API versions
// return the comment as a JSON string, which is passed through.
func TextFromDocument(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var doc Node
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	return strings.TrimRight(nodeText(doc), "\n")
}

func nodeText(n Node) string {
	switch n.Type {
	case "text":
		return n.Text
	case "hardBreak":
		return "\n"
	}
	var b strings.Builder
	blocks := n.Type == "doc" || n.Type == "bulletList" || n.Type == "orderedList" || n.Type == "listItem"
	for i, c := range n.Content {
		if blocks && i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(nodeText(c))
	}
	return b.String()
}
