package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/flate"
)

func init() {
	// Register klauspost/compress's flate as the Deflate implementation
	// for both directions. It's a drop-in faster replacement for the
	// stdlib compressor already pulled in by this pack's object-storage
	// stack (minio-go depends on it transitively).
	zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
}

// packZip deflates a path->bytes map into a single ZIP container. Paths
// are written in sorted order so the container's directory listing is
// deterministic, even though spec §4.8/§6 don't require it.
func packZip(files map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: path, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("archive: create zip entry %q: %w", path, err)
		}
		if _, err := fw.Write(files[path]); err != nil {
			return nil, fmt.Errorf("archive: write zip entry %q: %w", path, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("archive: finalize zip container: %w", err)
	}
	return buf.Bytes(), nil
}

// unpackZip reads every entry of a ZIP container into a path->bytes map.
func unpackZip(data []byte) (map[string][]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("archive: open zip container: %w", err)
	}

	out := make(map[string][]byte, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("archive: open zip entry %q: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		closeErr := rc.Close()
		if err != nil {
			return nil, fmt.Errorf("archive: read zip entry %q: %w", f.Name, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("archive: close zip entry %q: %w", f.Name, closeErr)
		}
		out[f.Name] = content
	}
	return out, nil
}
