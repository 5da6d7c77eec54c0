package filesystem

import (
	"bytes"
	"context"
	"io"
	"strings"

	gwerr "github.com/sabouaram/storegate/internal/gwerrors"
	"github.com/sabouaram/storegate/internal/gwtypes"
	"github.com/sabouaram/storegate/pkg/mimeclass"
)

func inferContentType(filename string) string {
	return mimeclass.InferFromFilename(filename)
}

// Mkdir idempotently creates a zero-length object ending in "/" with
// content-type application/x-directory. Silently succeeds if it already
// exists.
func (fs *FileSystem) Mkdir(ctx context.Context, raw string, auth gwtypes.AuthResult) error {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}

	res, err := fs.resolve(raw, auth)
	if err != nil {
		return err
	}

	if _, err := res.Driver.Put(ctx, res.ObjectKey, bytes.NewReader(nil), 0, "application/x-directory"); err != nil {
		return err
	}

	fs.touchAncestors(ctx, res.Mount.ID, gwtypes.VirtualPath(raw))
	return nil
}

// Remove issues DeleteObject for files and a recursive batch delete for
// directories. The root-marker sentinel is never deleted;
// empty paths, mount roots, and "/" are rejected with invalidPath.
func (fs *FileSystem) Remove(ctx context.Context, raw string, auth gwtypes.AuthResult) error {
	vp, verr := gwtypes.Canonicalize(raw)
	if verr != nil {
		return verr
	}
	if vp == "/" {
		return gwerr.New(gwerr.InvalidPath, "cannot remove the storage root")
	}

	res, err := fs.resolve(raw, auth)
	if err != nil {
		return err
	}
	if res.Mount.NormalizedPath() == vp {
		return gwerr.New(gwerr.InvalidPath, "cannot remove a mount root")
	}
	if res.ObjectKey.IsRootMarker() {
		return gwerr.New(gwerr.InvalidPath, "cannot remove the root marker")
	}

	if vp.IsDir() {
		objects, lerr := res.Driver.ListAllFlat(ctx, res.ObjectKey.String())
		if lerr != nil {
			return lerr
		}
		keys := make([]gwtypes.ObjectKey, 0, len(objects)+1)
		for _, o := range objects {
			keys = append(keys, gwtypes.ObjectKey(o.Key))
		}
		keys = append(keys, res.ObjectKey)
		for _, chunk := range chunkKeys(keys, 1000) {
			if derr := res.Driver.DeleteBatch(ctx, chunk); derr != nil {
				return derr
			}
		}
	} else {
		if derr := res.Driver.Delete(ctx, res.ObjectKey); derr != nil {
			return derr
		}
	}

	fs.touchAncestors(ctx, res.Mount.ID, vp)
	return nil
}

func chunkKeys(keys []gwtypes.ObjectKey, size int) [][]gwtypes.ObjectKey {
	if len(keys) == 0 {
		return nil
	}
	var out [][]gwtypes.ObjectKey
	for i := 0; i < len(keys); i += size {
		end := i + size
		if end > len(keys) {
			end = len(keys)
		}
		out = append(out, keys[i:end])
	}
	return out
}

// BatchRemoveResult is the best-effort outcome of BatchRemove.
type BatchRemoveResult struct {
	Succeeded []string             `json:"succeeded"`
	Failed    []batchFailureDetail `json:"failed,omitempty"`
}

// BatchRemove is best-effort: it does not abort on the first failure.
func (fs *FileSystem) BatchRemove(ctx context.Context, paths []string, auth gwtypes.AuthResult) BatchRemoveResult {
	var result BatchRemoveResult
	for _, p := range paths {
		if err := fs.Remove(ctx, p, auth); err != nil {
			result.Failed = append(result.Failed, batchFailureDetail{Path: p, Reason: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, p)
	}
	return result
}

// Rename is same-mount only: HEAD-then-copy-then-delete. Fails with
// conflict if newPath already exists; crossing mounts fails with
// crossMountRename.
func (fs *FileSystem) Rename(ctx context.Context, oldPath, newPath string, auth gwtypes.AuthResult) error {
	oldRes, err := fs.resolve(oldPath, auth)
	if err != nil {
		return err
	}
	newRes, err := fs.resolve(newPath, auth)
	if err != nil {
		return err
	}
	if oldRes.Mount.ID != newRes.Mount.ID {
		return gwerr.New(gwerr.CrossMountRename, "rename across mounts requires client-side copy")
	}

	if _, _, _, _, herr := newRes.Driver.Head(ctx, newRes.ObjectKey); herr == nil {
		return gwerr.New(gwerr.Conflict, "target path already exists: %s", newPath)
	}

	if cerr := oldRes.Driver.Copy(ctx, oldRes.ObjectKey, newRes.ObjectKey); cerr != nil {
		return cerr
	}
	if derr := oldRes.Driver.Delete(ctx, oldRes.ObjectKey); derr != nil {
		return derr
	}

	vpOld, _ := gwtypes.Canonicalize(oldPath)
	vpNew, _ := gwtypes.Canonicalize(newPath)
	fs.touchAncestors(ctx, oldRes.Mount.ID, vpOld)
	fs.touchAncestors(ctx, newRes.Mount.ID, vpNew)
	return nil
}

// UploadResult is the outcome of a direct (non-multipart) upload.
type UploadResult struct {
	ObjectKey gwtypes.ObjectKey `json:"objectKey"`
	ETag      string            `json:"etag"`
	Size      int64             `json:"size"`
	Mimetype  string            `json:"mimetype"`
}

// Upload is the small-object path: direct PutObject with content-type
// inferred from filename, for bytes <= 5 MiB or when the caller opts out of
// multipart.
func (fs *FileSystem) Upload(ctx context.Context, raw string, filename string, body io.Reader, size int64, auth gwtypes.AuthResult) (UploadResult, error) {
	res, err := fs.resolve(raw, auth)
	if err != nil {
		return UploadResult{}, err
	}

	if cerr := fs.checkCapacity(ctx, res.Mount.StorageConfigID, size); cerr != nil {
		return UploadResult{}, cerr
	}

	contentType := inferContentType(filename)
	etag, perr := res.Driver.Put(ctx, res.ObjectKey, body, size, contentType)
	if perr != nil {
		return UploadResult{}, perr
	}

	_ = fs.store.AdjustStorageUsage(ctx, res.Mount.StorageConfigID, size)

	vp, _ := gwtypes.Canonicalize(raw)
	fs.touchAncestors(ctx, res.Mount.ID, vp)

	return UploadResult{ObjectKey: res.ObjectKey, ETag: etag, Size: size, Mimetype: contentType}, nil
}

func (fs *FileSystem) checkCapacity(ctx context.Context, storageConfigID string, addedBytes int64) error {
	row, found, err := fs.store.GetStorageConfig(ctx, storageConfigID)
	if err != nil || !found {
		return nil
	}
	if row.TotalCapacityBytes == nil {
		return nil
	}
	if row.UsageBytes+addedBytes > *row.TotalCapacityBytes {
		return gwerr.New(gwerr.CapacityExhausted, "storage config %s capacity exceeded", storageConfigID)
	}
	return nil
}
