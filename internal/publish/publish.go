// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/openchami/image-builder/internal/buildah"
	"github.com/openchami/image-builder/internal/objectstore"
	"github.com/openchami/image-builder/pkg/layerdef"
)

const (
	// DestinationLocal commits tagged images into the local store.
	DestinationLocal Destination = "local"
	// DestinationS3 uploads a root filesystem bundle and boot artifacts.
	DestinationS3 Destination = "s3"
	// DestinationRegistry pushes tagged images to a registry.
	DestinationRegistry Destination = "registry"
)

// ErrPublish is the sentinel error wrapped by Error.
var ErrPublish = errors.New("publish failed")

type (
	// Destination names a publish target.
	Destination string

	// Uploader stores a local file under an object key.
	Uploader interface {
		UploadFile(ctx context.Context, path, key string) (objectstore.Object, error)
	}

	// UploaderFactory creates an Uploader for an S3 target.
	UploaderFactory func(ctx context.Context, target layerdef.S3Target) (Uploader, error)

	// Request is one finished layer to publish.
	Request struct {
		Container *buildah.Container
		// Layer is the layer name used for image references and object keys.
		Layer string
		Spec  layerdef.PublishSpec
	}

	// Result lists what was published.
	Result struct {
		Images  []string
		Objects []objectstore.Object
		Pushed  []string
	}

	// Error reports the destination that failed.
	Error struct {
		Destination Destination
		Err         error
	}

	// Option configures a Publisher.
	Option func(*Publisher)

	// Publisher publishes working containers through a buildah engine.
	Publisher struct {
		engine      *buildah.Engine
		fs          afero.Fs
		logger      *log.Logger
		tempDir     string
		mksquashfs  string
		newUploader UploaderFactory
	}
)

// New creates a Publisher.
func New(engine *buildah.Engine, opts ...Option) *Publisher {
	p := &Publisher{
		engine:     engine,
		fs:         afero.NewOsFs(),
		logger:     log.Default(),
		mksquashfs: DefaultMksquashfs,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.newUploader == nil {
		p.newUploader = p.defaultUploader
	}
	return p
}

// WithLogger sets the publisher logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithFs sets the filesystem the mounted root filesystem is read through.
func WithFs(fsys afero.Fs) Option {
	return func(p *Publisher) {
		p.fs = fsys
	}
}

// WithTempDir sets where bundles are staged. Empty uses the OS default.
func WithTempDir(dir string) Option {
	return func(p *Publisher) {
		p.tempDir = dir
	}
}

// WithUploaderFactory replaces the S3 client construction.
func WithUploaderFactory(factory UploaderFactory) Option {
	return func(p *Publisher) {
		p.newUploader = factory
	}
}

// Publish sends req to every configured destination, then cleans up. The
// returned error names the first destination that failed; cleanup problems
// are only logged.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Result, error) {
	spec := req.Spec
	tags := spec.EffectiveTags()
	res := &Result{}
	var committed []string

	err := func() error {
		if spec.Local {
			p.logger.Info("publishing to local store", "layer", req.Layer, "tags", tags)
			for _, tag := range tags {
				if err := p.commit(ctx, req, tag, &committed); err != nil {
					return &Error{Destination: DestinationLocal, Err: err}
				}
			}
			res.Images = slices.Clone(committed)
		}
		if spec.S3 != nil {
			objects, err := p.publishS3(ctx, req, tags)
			res.Objects = append(res.Objects, objects...)
			if err != nil {
				return &Error{Destination: DestinationS3, Err: err}
			}
		}
		if spec.Registry != nil {
			pushed, err := p.publishRegistry(ctx, req, tags, &committed)
			res.Pushed = append(res.Pushed, pushed...)
			if err != nil {
				return &Error{Destination: DestinationRegistry, Err: err}
			}
		}
		return nil
	}()

	p.cleanup(ctx, req, committed)
	return res, err
}

// ImageRef returns the local reference "<layer>:<tag>".
func ImageRef(layer, tag string) string {
	return layer + ":" + tag
}

// commit commits the container as <layer>:<tag> unless an earlier
// destination already did.
func (p *Publisher) commit(ctx context.Context, req Request, tag string, committed *[]string) error {
	ref := ImageRef(req.Layer, tag)
	if slices.Contains(*committed, ref) {
		return nil
	}
	if err := p.engine.Commit(ctx, req.Container, ref); err != nil {
		return err
	}
	*committed = append(*committed, ref)
	return nil
}

// cleanup removes transient buildah state. It runs detached from ctx so an
// interrupted publish still cleans up.
func (p *Publisher) cleanup(ctx context.Context, req Request, committed []string) {
	ctx = context.WithoutCancel(ctx)
	spec := req.Spec

	if req.Container != nil {
		// Container.Remove logs its own failure.
		_ = req.Container.Remove(ctx)
	}

	if spec.Registry != nil && !spec.Local {
		for _, ref := range committed {
			if err := p.engine.RemoveImage(ctx, ref); err != nil {
				p.logger.Warn("failed to remove transient image", "image", ref, "err", err)
			}
		}
	}

	if spec.ParentRef != "" && spec.ParentRef != layerdef.ScratchParent {
		if err := p.engine.RemoveImage(ctx, spec.ParentRef); err != nil {
			p.logger.Warn("failed to remove parent image", "image", spec.ParentRef, "err", err)
		}
	}
}

func (p *Publisher) defaultUploader(ctx context.Context, target layerdef.S3Target) (Uploader, error) {
	return objectstore.New(ctx, objectstore.Config{
		Bucket:    target.Bucket,
		Endpoint:  target.Endpoint,
		Region:    target.Region,
		AccessKey: target.AccessKey,
		SecretKey: target.SecretKey,
	}, objectstore.WithLogger(p.logger), objectstore.WithFs(p.fs))
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("publish to %s: %v", e.Destination, e.Err)
}

// Unwrap returns ErrPublish and the underlying cause.
func (e *Error) Unwrap() []error { return []error{ErrPublish, e.Err} }
