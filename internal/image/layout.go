package image

import (
	"encoding/json"
	"io"
	"path"
	"slices"
	"time"

	"github.com/containerd/containerd/v2/core/images"
	"github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// In-memory OCI image layout.
type layout struct {
	blobs map[digest.Digest][]byte // Blob contents keyed by digest.
}

// Creates an empty layout.
func newLayout() *layout {
	return &layout{blobs: make(map[digest.Digest][]byte)}
}

// Adds raw blob data under its descriptor.
func (l *layout) addBlob(desc ocispec.Descriptor, data []byte) {
	l.blobs[desc.Digest] = data
}

// Serializes a value, stores it as a blob, and returns the descriptor
// that references it.
func (l *layout) writeJSON(mediaType string, v any) (ocispec.Descriptor, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	desc := ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    digest.FromBytes(b),
		Size:      int64(len(b)),
	}
	l.addBlob(desc, b)
	return desc, nil
}

// Writes the layout as a tar archive with index.json pointing at manifest.
//
// The manifest descriptor in the index carries the OCI reference name
// annotation (the tag) and containerd's image name annotation (the full
// reference), so an import names the image without extra flags.
func (l *layout) writeTo(w io.Writer, manifest ocispec.Descriptor, ref, tag string, epoch time.Time) error {
	manifest.Annotations = map[string]string{
		ocispec.AnnotationRefName:  tag,
		images.AnnotationImageName: ref,
	}

	index, err := json.Marshal(ocispec.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageIndex,
		Manifests: []ocispec.Descriptor{manifest},
	})
	if err != nil {
		return err
	}

	marker, err := json.Marshal(ocispec.ImageLayout{Version: ocispec.ImageLayoutVersion})
	if err != nil {
		return err
	}

	files := map[string][]byte{
		ocispec.ImageLayoutFile: marker,
		ocispec.ImageIndexFile:  index,
	}
	names := []string{ocispec.ImageLayoutFile, ocispec.ImageIndexFile}

	var blobNames []string
	for d, data := range l.blobs {
		name := path.Join(ocispec.ImageBlobsDir, d.Algorithm().String(), d.Encoded())
		files[name] = data
		blobNames = append(blobNames, name)
	}
	slices.Sort(blobNames)

	names = append(names, ocispec.ImageBlobsDir+"/", ocispec.ImageBlobsDir+"/"+digest.Canonical.String()+"/")
	names = append(names, blobNames...)
	return writeMemEntries(w, names, files, epoch)
}
