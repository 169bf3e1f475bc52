package tts

import "testing"

func TestPlainText(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     string
	}{
		{
			name:     "Plain sentence",
			markdown: "Just some text.",
			want:     "Just some text.",
		},
		{
			name:     "Heading closes a sentence",
			markdown: "# Title\n\nThis is a paragraph.",
			want:     "Title. This is a paragraph.",
		},
		{
			name:     "Lists",
			markdown: "Items:\n\n- First item\n- Second item",
			want:     "Items: First item. Second item.",
		},
		{
			name:     "Code blocks dropped",
			markdown: "Here is some text.\n\n```go\nfmt.Println(\"x\")\n```\n\nMore text here.",
			want:     "Here is some text. More text here.",
		},
		{
			name:     "Inline code kept",
			markdown: "Run `go test` now.",
			want:     "Run go test now.",
		},
		{
			name:     "Link text kept",
			markdown: "Visit [the site](https://example.com) today.",
			want:     "Visit the site today.",
		},
		{
			name:     "Emphasis stripped",
			markdown: "This is **bold** and *italic* text.",
			want:     "This is bold and italic text.",
		},
		{
			name:     "Soft line breaks become spaces",
			markdown: "one\ntwo",
			want:     "one two.",
		},
		{
			name:     "Empty",
			markdown: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.markdown); got != tt.want {
				t.Errorf("PlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}
