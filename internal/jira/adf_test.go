package jira

import (
	"encoding/json"
	"testing"
)

func TestDocumentFromText(t *testing.T) {
	if DocumentFromText("  \n") != nil {
		t.Fatalf("blank text should produce no document")
	}
	doc := DocumentFromText("one\r\n\nthree\n")
	if doc.Type != "doc" || doc.Version != 1 || len(doc.Content) != 3 {
		t.Fatalf("DocumentFromText = %#v", doc)
	}
	if doc.Content[1].Content != nil {
		t.Fatalf("empty line should be an empty paragraph, got %#v", doc.Content[1])
	}
	if TextFromDocument(mustJSON(t, doc)) != "one\n\nthree" {
		t.Fatalf("round trip = %q", TextFromDocument(mustJSON(t, doc)))
	}
}

func TestTextFromDocument(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: ``, want: ""},
		{name: "null", raw: `null`, want: ""},
		{name: "plain string", raw: `"legacy comment"`, want: "legacy comment"},
		{name: "invalid", raw: `{`, want: ""},
		{
			name: "hard break and marks",
			raw:  `{"type":"doc","version":1,"content":[{"type":"paragraph","content":[{"type":"text","text":"a"},{"type":"hardBreak"},{"type":"text","text":"b","marks":[{"type":"strong"}]}]}]}`,
			want: "a\nb",
		},
		{
			name: "list",
			raw:  `{"type":"doc","content":[{"type":"bulletList","content":[{"type":"listItem","content":[{"type":"paragraph","content":[{"type":"text","text":"x"}]}]},{"type":"listItem","content":[{"type":"paragraph","content":[{"type":"text","text":"y"}]}]}]}]}`,
			want: "x\ny",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TextFromDocument(json.RawMessage(tt.raw)); got != tt.want {
				t.Fatalf("TextFromDocument = %q, want %q", got, tt.want)
			}
		})
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return raw
}
