package archive

import (
	"crypto/ed25519"
	"fmt"
	"regexp"
	"time"
)

var slugDisallowed = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// slugify replaces every character outside [A-Za-z0-9_-] with an
// underscore (spec §4.8).
func slugify(name string) string {
	return slugDisallowed.ReplaceAllString(name, "_")
}

// ChannelExport is one channel or DM's contribution to an archive: the
// pre-serialized JSON export bytes plus the counts the builder rolls up
// into the manifest's message_count and date_range.
type ChannelExport struct {
	Name         string
	IsDM         bool
	Data         []byte
	MessageCount int
	DateRange    DateRange
}

// Builder accumulates channel blobs, attachment blobs, optional server
// metadata, and an optional audit log, then emits a signed `.haven`
// archive (spec §4.8).
type Builder struct {
	exporter    Exporter
	scope       Scope
	serverID    string
	channelID   string
	instanceURL string

	channels     map[string][]byte
	slugOwners   map[string]string // slug -> original channel name, for collision detection
	attachments  map[string][]byte
	serverMeta   []byte
	hasServer    bool
	auditLog     []byte
	hasAuditLog  bool
	messageCount int
	dateFrom     string
	dateTo       string
}

// NewBuilder starts an archive build attributed to exporter.
func NewBuilder(exporter Exporter) *Builder {
	return &Builder{
		exporter:    exporter,
		channels:    make(map[string][]byte),
		slugOwners:  make(map[string]string),
		attachments: make(map[string][]byte),
	}
}

// WithScope records the optional scope/server_id/channel_id/instance_url
// metadata fields.
func (b *Builder) WithScope(scope Scope, serverID, channelID, instanceURL string) *Builder {
	b.scope = scope
	b.serverID = serverID
	b.channelID = channelID
	b.instanceURL = instanceURL
	return b
}

// ErrSlugCollision is returned by AddChannel when two channel names
// normalize to the same archive path. Spec §9 flags this as an open
// question between silent last-write-wins and detect-and-fail; this
// module detects and fails, so a caller never silently loses a channel's
// export to an overwrite (see DESIGN.md).
type ErrSlugCollision struct {
	Slug     string
	Existing string
	New      string
}

func (e *ErrSlugCollision) Error() string {
	return fmt.Sprintf("archive: channel %q and %q both normalize to slug %q", e.Existing, e.New, e.Slug)
}

// AddChannel accumulates one channel or DM export, folding its message
// count and date range into the running manifest totals.
func (b *Builder) AddChannel(ch ChannelExport) error {
	slug := slugify(ch.Name)
	prefix := "channels/"
	if ch.IsDM {
		prefix = "dms/"
	}
	path := prefix + slug + ".json"

	if owner, exists := b.slugOwners[path]; exists && owner != ch.Name {
		return &ErrSlugCollision{Slug: slug, Existing: owner, New: ch.Name}
	}
	b.slugOwners[path] = ch.Name
	b.channels[path] = ch.Data

	b.messageCount += ch.MessageCount
	if b.dateFrom == "" || (ch.DateRange.From != "" && ch.DateRange.From < b.dateFrom) {
		b.dateFrom = ch.DateRange.From
	}
	if ch.DateRange.To > b.dateTo {
		b.dateTo = ch.DateRange.To
	}
	return nil
}

// AddAttachment accumulates one attachment's raw bytes under
// attachments/<id>.bin.
func (b *Builder) AddAttachment(id string, data []byte) {
	b.attachments["attachments/"+id+".bin"] = data
}

// SetServerMeta sets the optional server.json blob.
func (b *Builder) SetServerMeta(data []byte) {
	b.serverMeta = data
	b.hasServer = true
}

// SetAuditLog sets the optional audit-log.json blob. The payload is
// schema-free (spec §9) and stored verbatim.
func (b *Builder) SetAuditLog(data []byte) {
	b.auditLog = data
	b.hasAuditLog = true
}

// nowFn is overridable in tests so exported_at is deterministic.
var nowFn = func() time.Time { return time.Now().UTC() }

// Build computes the manifest, signs it if signingKey is non-nil, and
// packs everything into a ZIP container (spec §4.8).
func (b *Builder) Build(signingKey ed25519.PrivateKey) ([]byte, error) {
	files := make(map[string][]byte, len(b.channels)+len(b.attachments)+2)
	for path, data := range b.channels {
		files[path] = data
	}
	for path, data := range b.attachments {
		files[path] = data
	}
	if b.hasServer {
		files["server.json"] = b.serverMeta
	}
	if b.hasAuditLog {
		files["audit-log.json"] = b.auditLog
	}

	entries := make(map[string]FileEntry, len(files))
	for path, data := range files {
		entries[path] = FileEntry{SHA256: computeFileHash(data), Size: int64(len(data))}
	}

	manifest := Manifest{
		Version:      ManifestVersion,
		Format:       Format,
		ExportedBy:   b.exporter,
		ExportedAt:   nowFn().Format(time.RFC3339),
		Scope:        b.scope,
		ServerID:     b.serverID,
		ChannelID:    b.channelID,
		InstanceURL:  b.instanceURL,
		Files:        entries,
		MessageCount: b.messageCount,
		DateRange:    DateRange{From: b.dateFrom, To: b.dateTo},
	}

	if signingKey != nil {
		sig, err := SignManifest(manifest, signingKey)
		if err != nil {
			return nil, fmt.Errorf("archive: sign manifest: %w", err)
		}
		manifest.UserSignature = sig
	}

	manifestJSON, err := marshalManifest(manifest)
	if err != nil {
		return nil, fmt.Errorf("archive: serialize manifest: %w", err)
	}
	files["manifest.json"] = manifestJSON

	packed, err := packZip(files)
	if err != nil {
		return nil, err
	}
	return packed, nil
}
