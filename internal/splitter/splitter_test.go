package splitter

import (
	"strings"
	"testing"

	"github.com/junyang168/smart-answer/internal/core/domain"
)

func TestNew(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		s, err := New(2000, 200)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.MaxSize() != 2000 {
			t.Errorf("expected maxSize 2000, got %d", s.MaxSize())
		}
		if s.Overlap() != 200 {
			t.Errorf("expected overlap 200, got %d", s.Overlap())
		}
	})

	t.Run("overlap equal to max size rejected", func(t *testing.T) {
		_, err := New(100, 100)
		if err == nil {
			t.Fatal("expected configuration error")
		}
		if !strings.Contains(err.Error(), "overlap_size") {
			t.Errorf("error should name overlap_size: %v", err)
		}
	})

	t.Run("overlap above max size rejected", func(t *testing.T) {
		if _, err := New(100, 150); err == nil {
			t.Fatal("expected configuration error")
		}
	})

	t.Run("non-positive max size rejected", func(t *testing.T) {
		if _, err := New(0, 0); err == nil {
			t.Fatal("expected configuration error")
		}
	})
}

func TestSplit_EmptyText(t *testing.T) {
	s, _ := New(100, 10)
	if chunks := s.Split("kb", "c1", "", nil); len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty text, got %d", len(chunks))
	}
}

func TestSplit_SmallText(t *testing.T) {
	s, _ := New(100, 10)
	chunks := s.Split("kb", "c1", "short text", nil)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Text != "short text" {
		t.Errorf("expected text unchanged, got %q", c.Text)
	}
	if c.Collection != "kb" || c.ContentID != "c1" || c.Index != 0 {
		t.Errorf("unexpected chunk identity: %+v", c)
	}
	if c.Oversized {
		t.Error("small chunk must not be flagged oversized")
	}
}

func TestSplit_SizeBound(t *testing.T) {
	s, _ := New(200, 40)
	text := strings.Repeat("alpha beta gamma delta epsilon. ", 60)

	chunks := s.Split("kb", "c1", text, nil)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if !c.Oversized && len(c.Text) > 200 {
			t.Errorf("chunk %d exceeds max size: %d chars", c.Index, len(c.Text))
		}
	}
}

func TestSplit_ChunkIndexOrder(t *testing.T) {
	s, _ := New(100, 20)
	text := strings.Repeat("one two three four five six seven. ", 20)

	chunks := s.Split("kb", "c1", text, nil)
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("expected index %d, got %d", i, c.Index)
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	s, _ := New(150, 30)
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 30)

	first := s.Split("kb", "c1", text, nil)
	second := s.Split("kb", "c1", text, nil)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Text != second[i].Text {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplit_OverlapWindow(t *testing.T) {
	s, _ := New(100, 20)
	text := strings.Repeat("word ", 100) // 500 chars of uniform words

	chunks := s.Split("kb", "c1", text, nil)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1].Text, chunks[i].Text
		if !strings.HasSuffix(prev, cur[:20]) {
			t.Errorf("chunk %d does not start with the tail of chunk %d", i, i-1)
		}
	}
}

func TestSplit_Reconstruction(t *testing.T) {
	s, _ := New(120, 30)
	text := "First paragraph with several words in it.\n\n" +
		"Second paragraph, a bit longer, with more words to push the splitter " +
		"past a single chunk.\n\n" +
		"Third paragraph closes the document with a final sentence. The end."

	chunks := s.Split("kb", "c1", text, nil)
	if got := Stitch(chunks); got != text {
		t.Errorf("stitched text differs from original:\nwant %q\ngot  %q", text, got)
	}
}

func TestSplit_OversizedToken(t *testing.T) {
	s, _ := New(100, 20)
	token := strings.Repeat("x", 350) // unsplittable run, no separators
	text := "prefix " + token + " suffix"

	chunks := s.Split("kb", "c1", text, nil)

	var oversized int
	for _, c := range chunks {
		if c.Oversized {
			oversized++
			if !strings.Contains(c.Text, token) {
				t.Error("oversized chunk must carry the whole token")
			}
		}
	}
	if oversized != 1 {
		t.Errorf("expected exactly 1 oversized chunk, got %d", oversized)
	}

	// Never drop content.
	if got := Stitch(chunks); got != text {
		t.Errorf("oversized split lost content:\nwant %q\ngot  %q", text, got)
	}
}

func TestSplit_MetadataPropagated(t *testing.T) {
	s, _ := New(100, 20)
	meta := domain.NewMetadata()
	meta.Set("title", "Troubleshooting Guide")
	meta.Set("url", "https://example.com/guide")

	chunks := s.Split("kb", "c1", strings.Repeat("word ", 60), meta)
	for _, c := range chunks {
		if v, _ := c.Metadata.Get("title"); v != "Troubleshooting Guide" {
			t.Errorf("chunk %d missing title metadata", c.Index)
		}
	}

	// Metadata clones must not alias the input map.
	chunks[0].Metadata.Set("title", "changed")
	if v, _ := meta.Get("title"); v != "Troubleshooting Guide" {
		t.Error("splitting must not mutate caller metadata")
	}
}

// Five thousand characters at max 2000 / overlap 200 must produce three
// chunks, each within bounds, consecutive chunks sharing exactly 200
// characters.
func TestSplit_FiveThousandCharScenario(t *testing.T) {
	s, _ := New(2000, 200)
	text := strings.Repeat("word ", 1000) // exactly 5000 chars

	chunks := s.Split("kb", "c1", text, nil)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > 2000 {
			t.Errorf("chunk %d exceeds 2000 chars: %d", c.Index, len(c.Text))
		}
	}
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1].Text, chunks[i].Text
		if prev[len(prev)-200:] != cur[:200] {
			t.Errorf("chunks %d and %d do not share exactly 200 characters", i-1, i)
		}
	}
	if Stitch(chunks) != text {
		t.Error("stitched text differs from original")
	}
}
