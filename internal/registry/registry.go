package registry

import (
	"context"
	"fmt"
	"log/slog"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/oci"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/retry"
)

// Controls access to the destination registry.
type Options struct {
	Username  string // Static username. Empty uses the Docker credential store.
	Password  string // Static password or token.
	PlainHTTP bool   // Talk to the registry over plain HTTP.
}

// Pushes the image tagged tag inside the OCI layout archive to ref, a full
// reference such as "ghcr.io/org/conduit:release-default".
//
// Returns the descriptor of the pushed manifest.
func Publish(ctx context.Context, archive, tag, ref string, opts Options) (ocispec.Descriptor, error) {
	repo, err := newRepository(ref, opts)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	dstTag := repo.Reference.Reference
	if dstTag == "" {
		dstTag = tag
	}

	desc, err := copyArchive(ctx, archive, tag, repo, dstTag)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	slog.Info("image published", "ref", repo.Reference.Registry+"/"+repo.Reference.Repository+":"+dstTag, "digest", desc.Digest)
	return desc, nil
}

// Copies the tagged manifest and everything it references from the archive
// to dst under dstTag.
func copyArchive(ctx context.Context, archive, tag string, dst oras.Target, dstTag string) (ocispec.Descriptor, error) {
	src, err := oci.NewFromTar(ctx, archive)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %s: %w", ErrPublish, archive, err)
	}

	desc, err := oras.Copy(ctx, src, tag, dst, dstTag, oras.DefaultCopyOptions)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %s: %w", ErrPublish, tag, err)
	}
	return desc, nil
}

// Creates a remote repository handle with authentication configured.
func newRepository(ref string, opts Options) (*remote.Repository, error) {
	repo, err := remote.NewRepository(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidReference, ref, err)
	}
	repo.PlainHTTP = opts.PlainHTTP

	client := &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
	}

	if opts.Username != "" {
		client.Credential = auth.StaticCredential(repo.Reference.Registry, auth.Credential{
			Username: opts.Username,
			Password: opts.Password,
		})
	} else {
		store, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
		if err != nil {
			slog.Debug("docker credential store unavailable", "error", err)
		} else {
			client.Credential = credentials.Credential(store)
		}
	}

	repo.Client = client
	return repo, nil
}
