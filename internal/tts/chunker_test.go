package tts

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		maxSize int
		want    []string
	}{
		{
			name:    "Empty input",
			text:    "",
			maxSize: 10,
			want:    []string{},
		},
		{
			name:    "Whitespace only",
			text:    "   \n\t  ",
			maxSize: 10,
			want:    []string{},
		},
		{
			name:    "Fits in one chunk",
			text:    "  Hello world.  ",
			maxSize: 20,
			want:    []string{"Hello world."},
		},
		{
			name:    "Exactly the bound",
			text:    "0123456789",
			maxSize: 10,
			want:    []string{"0123456789"},
		},
		{
			name:    "Prefers sentence end",
			text:    "One two. Three four five six",
			maxSize: 20,
			want:    []string{"One two.", "Three four five six"},
		},
		{
			name:    "Last sentence end in window wins",
			text:    "A b. C d! E f? G h i j k",
			maxSize: 16,
			want:    []string{"A b. C d! E f?", "G h i j k"},
		},
		{
			name:    "Sentence end followed by newline",
			text:    "Hi there.\nNext one here",
			maxSize: 12,
			want:    []string{"Hi there.", "Next one", "here"},
		},
		{
			name:    "Period inside a token is not a sentence end",
			text:    "version 1.2.3 released today",
			maxSize: 15,
			want:    []string{"version 1.2.3", "released today"},
		},
		{
			name:    "Falls back to whitespace",
			text:    "hello world foo",
			maxSize: 7,
			want:    []string{"hello", "world", "foo"},
		},
		{
			name:    "Hard cut for a long token",
			text:    "abcdefghijklmnopqrstuvwxy",
			maxSize: 10,
			want:    []string{"abcdefghij", "klmnopqrst", "uvwxy"},
		},
		{
			name:    "Hard cut then words",
			text:    "abcdefghijkl mn",
			maxSize: 5,
			want:    []string{"abcde", "fghij", "kl mn"},
		},
		{
			name:    "Counts characters not bytes",
			text:    "héllo wörld",
			maxSize: 5,
			want:    []string{"héllo", "wörld"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChunkStrings(tt.text, tt.maxSize)
			if err != nil {
				t.Fatalf("ChunkStrings() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ChunkStrings() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunk_InvalidSize(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := Chunk("hello", n); !errors.Is(err, ErrInvalidChunkSize) {
			t.Errorf("Chunk(_, %d) error = %v, want ErrInvalidChunkSize", n, err)
		}
	}
}

func TestChunk_IndexAndBound(t *testing.T) {
	chunks, err := Chunk("one two three four five six seven", 10)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has Index %d", i, c.Index)
		}
		if c.SizeBound != 10 {
			t.Errorf("chunk %d has SizeBound %d, want 10", i, c.SizeBound)
		}
		if c.Content != strings.TrimSpace(c.Content) || c.Content == "" {
			t.Errorf("chunk %d content %q is not trimmed and non-empty", i, c.Content)
		}
	}
}

func TestChunk_FourHundredFiftyCharacters(t *testing.T) {
	// nine sentences: eight of 49 characters and one of 50, single spaces between
	sentences := make([]string, 0, 9)
	for i := 0; i < 8; i++ {
		sentences = append(sentences, strings.Repeat(string(rune('a'+i)), 48)+".")
	}
	sentences = append(sentences, strings.Repeat("z", 49)+".")
	text := strings.Join(sentences, " ")

	if n := utf8.RuneCountInString(text); n != 450 {
		t.Fatalf("test text is %d characters, want 450", n)
	}

	chunks, err := ChunkStrings(text, 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3: %q", len(chunks), chunks)
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 200 {
			t.Errorf("chunk %d is %d characters", i, n)
		}
		if !strings.HasSuffix(c, ".") {
			t.Errorf("chunk %d does not end on a sentence boundary: %q", i, c[len(c)-5:])
		}
	}
	wantLens := []int{199, 199, 50}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n != wantLens[i] {
			t.Errorf("chunk %d length = %d, want %d", i, n, wantLens[i])
		}
	}
}

func TestChunk_KeepsGraphemeClusters(t *testing.T) {
	// "é" written as e + combining acute, no whitespace anywhere
	text := strings.Repeat("e\u0301", 6)

	chunks, err := ChunkStrings(text, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range chunks {
		r, _ := utf8.DecodeRuneInString(c)
		if unicode.Is(unicode.Mn, r) {
			t.Errorf("chunk %d starts with a combining mark: %q", i, c)
		}
		if utf8.RuneCountInString(c) > 3 {
			t.Errorf("chunk %d exceeds bound: %q", i, c)
		}
	}
	if strings.Join(chunks, "") != text {
		t.Errorf("concatenation changed the text")
	}
}

func TestChunk_Properties(t *testing.T) {
	words := []string{
		"a", "the", "voice", "export", "Hello.", "world!", "why?", "ok",
		"supercalifragilisticexpialidocious", "x", "naïve", "café.", "\n", "  ",
	}
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		var b strings.Builder
		n := rng.Intn(60)
		for i := 0; i < n; i++ {
			b.WriteString(words[rng.Intn(len(words))])
			b.WriteString(" ")
		}
		text := b.String()
		maxSize := 1 + rng.Intn(40)

		chunks, err := ChunkStrings(text, maxSize)
		if err != nil {
			t.Fatal(err)
		}

		for i, c := range chunks {
			if c == "" || c != strings.TrimSpace(c) {
				t.Fatalf("iter %d: chunk %d %q is empty or untrimmed", iter, i, c)
			}
			if utf8.RuneCountInString(c) > maxSize {
				t.Fatalf("iter %d: chunk %d %q exceeds bound %d", iter, i, c, maxSize)
			}
		}

		if got, want := stripSpace(strings.Join(chunks, "")), stripSpace(text); got != want {
			t.Fatalf("iter %d: concatenation lost or duplicated characters\n got %q\nwant %q", iter, got, want)
		}

		trimmed := strings.TrimSpace(text)
		if trimmed != "" && utf8.RuneCountInString(trimmed) <= maxSize {
			if len(chunks) != 1 || chunks[0] != trimmed {
				t.Fatalf("iter %d: short text produced %q", iter, chunks)
			}
		}
	}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
