package container

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// archiveEntry is one ZIP entry kept exactly as stored in the source file.
type archiveEntry struct {
	header zip.FileHeader
	raw    []byte
}

// archive holds every entry of a container in its original order. Entries
// are carried as raw compressed bytes so untouched parts can be written back
// without recompression.
type archive struct {
	entries []*archiveEntry
}

// readArchive loads all entries of the ZIP file at path. The decompressed
// content of entries accepted by want is returned keyed by entry name.
func readArchive(path string, want func(name string) bool) (*archive, map[string][]byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open container %s: %w", filepath.Base(path), err)
	}
	defer r.Close()

	arc := &archive{entries: make([]*archiveEntry, 0, len(r.File))}
	parts := make(map[string][]byte)

	for _, f := range r.File {
		rr, err := f.OpenRaw()
		if err != nil {
			return nil, nil, fmt.Errorf("read raw entry %s: %w", f.Name, err)
		}
		raw, err := io.ReadAll(rr)
		if err != nil {
			return nil, nil, fmt.Errorf("read raw entry %s: %w", f.Name, err)
		}
		arc.entries = append(arc.entries, &archiveEntry{header: f.FileHeader, raw: raw})

		if want == nil || !want(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("decompress entry %s: %w", f.Name, err)
		}
		parts[f.Name] = data
	}

	return arc, parts, nil
}

// write serialises the archive to path. Entries named in replaced are
// recompressed from the new content with their original header metadata;
// all other entries are copied byte for byte.
func (a *archive) write(path string, replaced map[string][]byte) error {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range a.entries {
		hdr := e.header
		if data, ok := replaced[hdr.Name]; ok {
			hdr.CRC32 = 0
			hdr.CompressedSize64 = 0
			hdr.UncompressedSize64 = 0
			w, err := zw.CreateHeader(&hdr)
			if err != nil {
				return fmt.Errorf("create entry %s: %w", hdr.Name, err)
			}
			if _, err := w.Write(data); err != nil {
				return fmt.Errorf("write entry %s: %w", hdr.Name, err)
			}
			continue
		}

		w, err := zw.CreateRaw(&hdr)
		if err != nil {
			return fmt.Errorf("copy entry %s: %w", hdr.Name, err)
		}
		if _, err := w.Write(e.raw); err != nil {
			return fmt.Errorf("copy entry %s: %w", hdr.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalise container: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
