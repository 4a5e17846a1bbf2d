package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"unicode/utf8"
)

func TestTruncatePayload(t *testing.T) {
	t.Run("no_truncation_when_within_limit", func(t *testing.T) {
		out, truncated, size, sum := truncatePayload("hello world", 11)
		if truncated || out != "hello world" || size != 11 || sum != "" {
			t.Fatalf("truncatePayload() = %q, %v, %d, %q", out, truncated, size, sum)
		}
	})

	t.Run("zero_limit_disables_truncation", func(t *testing.T) {
		if _, truncated, _, _ := truncatePayload("hello", 0); truncated {
			t.Fatal("expected truncated=false for zero limit")
		}
	})

	t.Run("truncates_and_hashes_full_payload", func(t *testing.T) {
		want := sha256.Sum256([]byte("hello world"))
		out, truncated, size, sum := truncatePayload("hello world", 5)
		if !truncated {
			t.Fatal("expected truncated=true")
		}
		if out != "hello" {
			t.Fatalf("out = %q; want %q", out, "hello")
		}
		if size != 11 {
			t.Fatalf("original size = %d; want 11", size)
		}
		if sum != hex.EncodeToString(want[:]) {
			t.Fatalf("unexpected hash %q", sum)
		}
	})

	t.Run("non_ascii_is_cut_on_rune_boundary", func(t *testing.T) {
		out, truncated, size, _ := truncatePayload("😀😀", 5)
		if !truncated || size != 8 {
			t.Fatalf("truncated = %v, size = %d; want true, 8", truncated, size)
		}
		if out != "😀" {
			t.Fatalf("out = %q; want %q", out, "😀")
		}
		if !utf8.ValidString(out) {
			t.Fatalf("out %q is not valid UTF-8", out)
		}
	})

	t.Run("limit_inside_first_rune_keeps_nothing", func(t *testing.T) {
		out, truncated, _, _ := truncatePayload("é", 1)
		if !truncated || out != "" {
			t.Fatalf("truncatePayload() = %q, %v; want empty, true", out, truncated)
		}
	})
}
