// SPDX-License-Identifier: MPL-2.0

package buildah

import (
	"context"
	"sync"
)

// Container is a working container created by Engine.From. It is owned by a
// single build; whoever holds it is responsible for calling Remove on every
// exit path.
type Container struct {
	ID        string
	Name      string
	Parent    string
	MountPath string

	engine  *Engine
	once    sync.Once
	removed bool
	err     error
}

// NewContainer wraps an existing container id so it can be removed through e.
func NewContainer(e *Engine, id string) *Container {
	return &Container{ID: id, engine: e}
}

// Remove runs "buildah rm" for the container. Only the first call reaches
// buildah; later calls return the first result.
func (c *Container) Remove(ctx context.Context) error {
	c.once.Do(func() {
		c.removed = true
		c.err = c.engine.Remove(context.WithoutCancel(ctx), c.ID)
		if c.err != nil {
			c.engine.logger.Warn("failed to remove working container", "id", c.ID, "err", c.err)
			return
		}
		c.engine.logger.Info("removed working container", "id", c.ID)
	})
	return c.err
}

// Removed reports whether Remove has been called.
func (c *Container) Removed() bool {
	return c.removed
}
