package archive

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"general":    "general",
		"Team Chat!": "Team_Chat_",
		"日本語":        "___",
		"a-b_c123":   "a-b_c123",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAddChannelDetectsSlugCollision(t *testing.T) {
	b := NewBuilder(Exporter{UserID: "u1"})
	if err := b.AddChannel(ChannelExport{Name: "general chat", Data: []byte("{}")}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := b.AddChannel(ChannelExport{Name: "general-chat", Data: []byte("{}")})
	if err == nil {
		t.Fatal("expected a slug collision error")
	}
	var collision *ErrSlugCollision
	if !errors.As(err, &collision) {
		t.Fatalf("expected *ErrSlugCollision, got %T: %v", err, err)
	}
}

// S5 — full archive round trip.
func TestBuildAndOpenRoundTrip(t *testing.T) {
	restore := nowFn
	nowFn = func() time.Time { return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) }
	defer func() { nowFn = restore }()

	b := NewBuilder(Exporter{UserID: "u1", Username: "alice", IdentityKey: "dGVzdA=="})
	b.WithScope(ScopeChannel, "srv1", "chan1", "https://chat.example.com")

	err := b.AddChannel(ChannelExport{
		Name:         "general",
		Data:         []byte(`{"messages":[{"id":1},{"id":2}]}`),
		MessageCount: 2,
		DateRange:    DateRange{From: "2026-01-01T00:00:00Z", To: "2026-01-02T00:00:00Z"},
	})
	if err != nil {
		t.Fatalf("AddChannel: %v", err)
	}

	b.AddAttachment("att-001", []byte("fake image data"))
	b.SetServerMeta([]byte(`{"name":"example"}`))
	b.SetAuditLog([]byte(`[{"event":"export"}]`))

	archiveBytes, err := b.Build(nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	reader, err := Open(archiveBytes)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if reader.Manifest.Version != 1 {
		t.Errorf("Version = %d, want 1", reader.Manifest.Version)
	}
	if reader.Manifest.Format != "haven-export" {
		t.Errorf("Format = %q, want haven-export", reader.Manifest.Format)
	}
	if reader.Manifest.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", reader.Manifest.MessageCount)
	}

	if _, ok := reader.GetChannelExport("general"); !ok {
		t.Error("expected channels/general.json to be present")
	}

	attData, ok := reader.GetAttachment("attachments/att-001.bin")
	if !ok || string(attData) != "fake image data" {
		t.Errorf("attachment round trip failed: ok=%v data=%q", ok, attData)
	}

	result := reader.Verify()
	if !result.Valid || len(result.Issues) != 0 {
		t.Fatalf("expected valid archive with no issues, got %+v", result)
	}
}

func TestVerifyDetectsHashMismatch(t *testing.T) {
	b := NewBuilder(Exporter{UserID: "u1"})
	_ = b.AddChannel(ChannelExport{Name: "general", Data: []byte(`{}`)})
	archiveBytes, err := b.Build(nil)
	if err != nil {
		t.Fatal(err)
	}

	reader, err := Open(archiveBytes)
	if err != nil {
		t.Fatal(err)
	}
	entry := reader.Manifest.Files["channels/general.json"]
	entry.SHA256 = "0000000000000000000000000000000000000000000000000000000000000"[:64]
	reader.Manifest.Files["channels/general.json"] = entry

	result := reader.Verify()
	if result.Valid {
		t.Fatal("expected verification to fail after tampering with the manifest hash")
	}
	found := false
	for _, issue := range result.Issues {
		if strings.Contains(issue, "Hash mismatch") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a Hash mismatch issue, got %v", result.Issues)
	}
}

func TestVerifyDetectsMissingFile(t *testing.T) {
	b := NewBuilder(Exporter{UserID: "u1"})
	_ = b.AddChannel(ChannelExport{Name: "general", Data: []byte(`{}`)})
	archiveBytes, err := b.Build(nil)
	if err != nil {
		t.Fatal(err)
	}

	reader, err := Open(archiveBytes)
	if err != nil {
		t.Fatal(err)
	}
	reader.Manifest.Files["channels/ghost.json"] = FileEntry{SHA256: "abc", Size: 3}

	result := reader.Verify()
	if result.Valid {
		t.Fatal("expected verification to fail for a file referenced but absent")
	}
	found := false
	for _, issue := range result.Issues {
		if strings.Contains(issue, "Missing file") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a Missing file issue, got %v", result.Issues)
	}
}
