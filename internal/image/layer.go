package image

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Entry in a layer, either a directory or a file read from the host.
type entry struct {
	name string      // Archive path, relative, directories with a trailing slash.
	mode os.FileMode // Permission bits.
	src  string      // Host path. Empty for directories.
}

// Filesystem layer built from host files.
type layer struct {
	comment string           // History comment.
	entries map[string]entry // Entries keyed by archive path.
}

// Compressed layer blob with its descriptors.
type blob struct {
	data    []byte             // Gzip-compressed tar.
	desc    ocispec.Descriptor // Descriptor of data.
	diffID  digest.Digest      // Digest of the uncompressed tar.
	comment string             // History comment.
}

// Creates an empty layer.
func newLayer(comment string) *layer {
	return &layer{comment: comment, entries: make(map[string]entry)}
}

// Adds a host file at the absolute image path dest, creating parent
// directories as needed.
func (l *layer) addFile(dest, src string, mode os.FileMode) {
	name := strings.TrimPrefix(path.Clean(dest), "/")
	l.addParents(name)
	l.entries[name] = entry{name: name, mode: mode.Perm(), src: src}
}

// Adds a directory entry for every ancestor of name.
func (l *layer) addParents(name string) {
	for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
		key := dir + "/"
		if _, ok := l.entries[key]; !ok {
			l.entries[key] = entry{name: key, mode: 0o755}
		}
	}
}

// Writes the layer as a gzip-compressed tar and returns the blob.
//
// Entries are written in lexical order, owned by root, and stamped with
// epoch. The gzip header carries no name or timestamp.
func (l *layer) build(epoch time.Time) (*blob, error) {
	var compressed bytes.Buffer
	gz, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, err
	}

	diff := digest.Canonical.Digester()
	if err := writeEntries(io.MultiWriter(gz, diff.Hash()), l.sorted(), epoch); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}

	data := compressed.Bytes()
	return &blob{
		data: data,
		desc: ocispec.Descriptor{
			MediaType: ocispec.MediaTypeImageLayerGzip,
			Digest:    digest.FromBytes(data),
			Size:      int64(len(data)),
		},
		diffID:  diff.Digest(),
		comment: l.comment,
	}, nil
}

// Returns the entries sorted by archive path.
func (l *layer) sorted() []entry {
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]entry, len(names))
	for i, name := range names {
		out[i] = l.entries[name]
	}
	return out
}

// Writes entries to w as a tar stream.
func writeEntries(w io.Writer, entries []entry, epoch time.Time) error {
	tw := tar.NewWriter(w)
	for _, e := range entries {
		if err := writeEntry(tw, e, epoch); err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}
	}
	return tw.Close()
}

// Writes a single entry with a normalized header.
func writeEntry(tw *tar.Writer, e entry, epoch time.Time) error {
	header := &tar.Header{
		Name:    e.name,
		Mode:    int64(e.mode),
		ModTime: epoch,
		Format:  tar.FormatPAX,
	}

	if e.src == "" {
		header.Typeflag = tar.TypeDir
		return tw.WriteHeader(header)
	}

	f, err := os.Open(e.src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header.Typeflag = tar.TypeReg
	header.Size = info.Size()
	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tw, f)
	return err
}

// Writes in-memory files to w as a tar stream, in the given order.
func writeMemEntries(w io.Writer, names []string, files map[string][]byte, epoch time.Time) error {
	tw := tar.NewWriter(w)
	for _, name := range names {
		header := &tar.Header{
			Name:    name,
			Mode:    0o644,
			ModTime: epoch,
			Format:  tar.FormatPAX,
		}
		data, ok := files[name]
		if !ok {
			header.Typeflag = tar.TypeDir
			header.Mode = 0o755
			if err := tw.WriteHeader(header); err != nil {
				return err
			}
			continue
		}

		header.Typeflag = tar.TypeReg
		header.Size = int64(len(data))
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if _, err := tw.Write(data); err != nil {
			return err
		}
	}
	return tw.Close()
}
