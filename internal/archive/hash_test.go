package archive

import "testing"

// S4 — SHA-256 known-answer test.
func TestComputeFileHashKnownAnswer(t *testing.T) {
	got := computeFileHash([]byte("hello world"))
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde"
	if got != want {
		t.Fatalf("computeFileHash(%q) = %s, want %s", "hello world", got, want)
	}
}
