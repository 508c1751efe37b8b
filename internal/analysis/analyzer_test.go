package analysis

import (
	"testing"
)

func TestWhitespacePositionsAndOffsets(t *testing.T) {
	tokens := Whitespace{}.Analyze("This is a test document")

	want := []Token{
		{Term: "This", Position: 0, Start: 0, End: 4},
		{Term: "is", Position: 1, Start: 5, End: 7},
		{Term: "a", Position: 2, Start: 8, End: 9},
		{Term: "test", Position: 3, Start: 10, End: 14},
		{Term: "document", Position: 4, Start: 15, End: 23},
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i, w := range want {
		if tokens[i] != w {
			t.Errorf("token %d = %+v, want %+v", i, tokens[i], w)
		}
	}
}

func TestWhitespaceLeadingTrailingSpace(t *testing.T) {
	tokens := Whitespace{}.Analyze("  hello\tworld  ")
	if len(tokens) != 2 {
		t.Fatalf("got %d tokens, want 2: %v", len(tokens), tokens)
	}
	if tokens[0].Term != "hello" || tokens[0].Start != 2 || tokens[0].End != 7 {
		t.Errorf("unexpected first token: %+v", tokens[0])
	}
	if tokens[1].Term != "world" || tokens[1].Start != 8 || tokens[1].End != 13 {
		t.Errorf("unexpected second token: %+v", tokens[1])
	}
}

func TestWhitespaceEmpty(t *testing.T) {
	if tokens := (Whitespace{}).Analyze(""); len(tokens) != 0 {
		t.Errorf("empty text produced tokens: %v", tokens)
	}
	if tokens := (Whitespace{}).Analyze("   "); len(tokens) != 0 {
		t.Errorf("blank text produced tokens: %v", tokens)
	}
}

func TestStandardDropsStopWords(t *testing.T) {
	tokens := Standard{}.Analyze("the quick fox")
	if len(tokens) != 2 {
		t.Fatalf("got %d tokens, want 2: %v", len(tokens), tokens)
	}
	if tokens[0].Term != "quick" || tokens[0].Position != 0 {
		t.Errorf("unexpected first token: %+v", tokens[0])
	}
	if tokens[1].Term != "fox" || tokens[1].Position != 1 {
		t.Errorf("unexpected second token: %+v", tokens[1])
	}
}

func TestStandardOffsetsSpanOriginalWord(t *testing.T) {
	tokens := Standard{}.Analyze("Running, jumping!")
	if len(tokens) != 2 {
		t.Fatalf("got %d tokens, want 2: %v", len(tokens), tokens)
	}
	// Stemming shortens the term but offsets still cover the source word.
	if tokens[0].Term != "runn" || tokens[0].Start != 0 || tokens[0].End != 7 {
		t.Errorf("unexpected first token: %+v", tokens[0])
	}
	if tokens[1].Start != 9 || tokens[1].End != 16 {
		t.Errorf("unexpected second token offsets: %+v", tokens[1])
	}
}

func TestStandardLowercases(t *testing.T) {
	tokens := Standard{}.Analyze("BREACH")
	if len(tokens) != 1 || tokens[0].Term != "breach" {
		t.Fatalf("unexpected tokens: %v", tokens)
	}
}

func TestNormalizeTerm(t *testing.T) {
	if got := NormalizeTerm("Breaches"); got != NormalizeTerm("breach") {
		t.Errorf("normalisation disagrees: %q vs %q", got, NormalizeTerm("breach"))
	}
	if got := NormalizeTerm("the"); got != "" {
		t.Errorf("stop word normalised to %q, want empty", got)
	}
}

func TestForName(t *testing.T) {
	if ForName("whitespace").Name() != "whitespace" {
		t.Error("whitespace analyzer not returned")
	}
	if ForName("standard").Name() != "standard" {
		t.Error("standard analyzer not returned")
	}
	if ForName("").Name() != "standard" {
		t.Error("unknown name should default to standard")
	}
}
