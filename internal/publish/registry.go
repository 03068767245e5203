// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

const dockerTransport = "docker://"

// RegistryRef returns "<endpoint>/<layer>:<tag>" after checking that it is a
// valid image reference. A leading docker:// transport is kept in the result
// but ignored for validation.
func RegistryRef(endpoint, layer, tag string) (string, error) {
	ref := strings.TrimSuffix(endpoint, "/") + "/" + layer + ":" + tag
	if _, err := name.NewTag(strings.TrimPrefix(ref, dockerTransport), name.StrictValidation); err != nil {
		return "", fmt.Errorf("invalid registry reference %q: %w", ref, err)
	}
	return ref, nil
}

func (p *Publisher) publishRegistry(ctx context.Context, req Request, tags []string, committed *[]string) ([]string, error) {
	target := req.Spec.Registry
	p.logger.Info("publishing to registry", "endpoint", target.Endpoint, "tags", tags)

	var pushed []string
	for _, tag := range tags {
		dest, err := RegistryRef(target.Endpoint, req.Layer, tag)
		if err != nil {
			return pushed, err
		}
		if err := p.commit(ctx, req, tag, committed); err != nil {
			return pushed, err
		}
		if err := p.engine.Push(ctx, ImageRef(req.Layer, tag), dest, slices.Clone(target.PushOpts)); err != nil {
			return pushed, err
		}
		pushed = append(pushed, dest)
	}
	return pushed, nil
}
