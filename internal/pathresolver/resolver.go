// Package pathresolver maps a virtual path to its resolving mount, driver
// and object-store key, and enforces the principal's allowed path prefix.
package pathresolver

import (
	"sort"

	gwerr "github.com/sabouaram/storegate/internal/gwerrors"
	"github.com/sabouaram/storegate/internal/gwtypes"
	"github.com/sabouaram/storegate/internal/s3driver"
)

// Resolution is the outcome of resolving a virtual path against the
// configured mount table.
type Resolution struct {
	Mount     gwtypes.Mount
	Driver    *s3driver.Driver
	SubPath   string
	ObjectKey gwtypes.ObjectKey
}

// DriverLookup resolves a storage config id to its live driver instance.
// Implemented by internal/filesystem's driver cache.
type DriverLookup func(storageConfigID string) (*s3driver.Driver, gwtypes.StorageConfig, bool)

// MountLookup returns the full mount table, freshest-first is not required;
// Resolve performs its own tie-breaking.
type MountLookup func() []gwtypes.Mount

// Resolver resolves virtual paths against a mount table and a driver
// lookup.
type Resolver struct {
	mounts  MountLookup
	drivers DriverLookup
}

// New constructs a Resolver.
func New(mounts MountLookup, drivers DriverLookup) *Resolver {
	return &Resolver{mounts: mounts, drivers: drivers}
}

// Resolve finds the mount whose virtual path prefix best matches raw:
// longest-prefix match wins; within equal length, the most recently
// created mount wins.
func (r *Resolver) Resolve(raw string, principal gwtypes.AuthResult) (Resolution, error) {
	vp, err := gwtypes.Canonicalize(raw)
	if err != nil {
		return Resolution{}, err
	}

	if !principal.Allows(vp) {
		return Resolution{}, gwerr.New(gwerr.PathForbidden, "path %s is outside allowed prefix %s", vp, principal.AllowedPrefix)
	}

	candidates := make([]gwtypes.Mount, 0)
	for _, m := range r.mounts() {
		if vp.HasPrefix(m.NormalizedPath()) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return Resolution{}, gwerr.New(gwerr.MountNotFound, "no mount matches path %s", vp)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		li, lj := len(candidates[i].NormalizedPath()), len(candidates[j].NormalizedPath())
		if li != lj {
			return li > lj
		}
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	mount := candidates[0]

	drv, cfg, ok := r.drivers(mount.StorageConfigID)
	if !ok {
		return Resolution{}, gwerr.New(gwerr.MountNotFound, "storage config %s for mount %s is unavailable", mount.StorageConfigID, mount.ID)
	}

	subPath := vp.TrimPrefix(mount.NormalizedPath())
	objectKey := gwtypes.ComputeObjectKey(cfg.RootPrefix, subPath, vp.IsDir())

	return Resolution{
		Mount:     mount,
		Driver:    drv,
		SubPath:   subPath,
		ObjectKey: objectKey,
	}, nil
}
