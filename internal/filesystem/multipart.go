package filesystem

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/sabouaram/storegate/internal/gwtypes"
	"github.com/sabouaram/storegate/internal/pathresolver"
	"github.com/sabouaram/storegate/internal/s3driver"
)

// MultipartInitResult is returned from InitiateMultipart.
type MultipartInitResult struct {
	UploadID            string            `json:"uploadId"`
	ObjectKey           gwtypes.ObjectKey `json:"objectKey"`
	RecommendedPartSize int64             `json:"recommendedPartSize"`
}

// InitiateMultipart starts a backend-driven multipart upload. The server
// holds no session in the metadata store; the caller carries uploadId and
// objectKey across subsequent part/complete/abort calls.
func (fs *FileSystem) InitiateMultipart(ctx context.Context, raw, contentType string, declaredSize int64, auth gwtypes.AuthResult) (MultipartInitResult, error) {
	res, err := fs.resolve(raw, auth)
	if err != nil {
		return MultipartInitResult{}, err
	}

	if declaredSize > 0 {
		if cerr := fs.checkCapacity(ctx, res.Mount.StorageConfigID, declaredSize); cerr != nil {
			return MultipartInitResult{}, cerr
		}
	}

	uploadID, ierr := res.Driver.InitiateMultipart(ctx, res.ObjectKey, contentType)
	if ierr != nil {
		return MultipartInitResult{}, ierr
	}

	return MultipartInitResult{
		UploadID:            uploadID,
		ObjectKey:           res.ObjectKey,
		RecommendedPartSize: res.Driver.RecommendedPartSize(),
	}, nil
}

// UploadPart forwards bytes to the S3 driver's UploadPart, with its own
// 3-attempt retry.
func (fs *FileSystem) UploadPart(ctx context.Context, raw, uploadID string, partNumber int32, body []byte, auth gwtypes.AuthResult) (string, error) {
	res, err := fs.resolve(raw, auth)
	if err != nil {
		return "", err
	}
	return res.Driver.UploadPart(ctx, res.ObjectKey, uploadID, partNumber, body)
}

// CompleteMultipart issues CompleteMultipartUpload with the submitted part
// list, then refreshes usage accounting and ancestor cache state. A
// missing etag is accepted with a logged warning rather than treated as a
// failure, since a follow-up Head still recovers it.
func (fs *FileSystem) CompleteMultipart(ctx context.Context, raw, uploadID string, parts []gwtypes.UploadPart, auth gwtypes.AuthResult) (UploadResult, error) {
	res, err := fs.resolve(raw, auth)
	if err != nil {
		return UploadResult{}, err
	}

	etag, cerr := res.Driver.CompleteMultipart(ctx, res.ObjectKey, uploadID, parts)
	if cerr != nil {
		return UploadResult{}, cerr
	}
	if etag == "" {
		fs.log.Warn("multipart complete returned no etag", map[string]any{"path": raw, "uploadId": uploadID})
	}

	size, _, contentType, headETag, herr := res.Driver.Head(ctx, res.ObjectKey)
	if herr == nil {
		if capErr := fs.checkCapacity(ctx, res.Mount.StorageConfigID, size); capErr != nil {
			res.Driver.Delete(ctx, res.ObjectKey)
			return UploadResult{}, capErr
		}
		_ = fs.store.AdjustStorageUsage(ctx, res.Mount.StorageConfigID, size)
		if etag == "" {
			etag = headETag
		}
	}

	vp, _ := gwtypes.Canonicalize(raw)
	fs.touchAncestors(ctx, res.Mount.ID, vp)

	return UploadResult{ObjectKey: res.ObjectKey, ETag: etag, Size: size, Mimetype: contentType}, nil
}

// AbortMultipart always reports success regardless of the driver's abort
// outcome.
func (fs *FileSystem) AbortMultipart(ctx context.Context, raw, uploadID string, auth gwtypes.AuthResult) error {
	res, err := fs.resolve(raw, auth)
	if err != nil {
		return err
	}
	res.Driver.AbortMultipart(ctx, res.ObjectKey, uploadID)
	return nil
}

// StreamUpload performs a bounded-memory server-side streaming multipart
// upload, used for WebDAV PUT and chunked-encoded uploads whose
// Content-Length is unknown ahead of time. A zero-length body, or a body of
// known size when uploadMode is "direct" or the size is at or under
// directThreshold, takes the single-PutObject fast path instead, skipping
// the CreateMultipartUpload/AbortMultipartUpload round trip entirely.
func (fs *FileSystem) StreamUpload(ctx context.Context, raw string, body io.Reader, declaredSize int64, contentType string, auth gwtypes.AuthResult) (UploadResult, error) {
	res, err := fs.resolve(raw, auth)
	if err != nil {
		return UploadResult{}, err
	}

	if declaredSize > 0 {
		if cerr := fs.checkCapacity(ctx, res.Mount.StorageConfigID, declaredSize); cerr != nil {
			return UploadResult{}, cerr
		}
	}

	var etag string
	var size int64
	if fs.useDirectUpload(declaredSize) {
		etag, size, err = fs.directPut(ctx, res, body, declaredSize, contentType)
	} else {
		etag, size, err = res.Driver.StreamUpload(ctx, res.ObjectKey, body, s3driver.StreamUploadOptions{
			ContentType: contentType,
			QueueDepth:  fs.cfg.Multipart.QueueDepth,
			PartSize:    fs.cfg.Multipart.PartSizeBytes,
		})
	}
	if err != nil {
		return UploadResult{}, err
	}

	_ = fs.store.AdjustStorageUsage(ctx, res.Mount.StorageConfigID, size)

	vp, _ := gwtypes.Canonicalize(raw)
	fs.touchAncestors(ctx, res.Mount.ID, vp)

	return UploadResult{ObjectKey: res.ObjectKey, ETag: etag, Size: size, Mimetype: contentType}, nil
}

// useDirectUpload decides whether a body should bypass the streaming
// multipart pipeline. A zero-length body never needs a multipart session.
// For a body whose size is declared up front, uploadMode=="direct" forces
// every upload through PutObject and a declared size at or under
// directThreshold is cheaper to buffer and send in one PutObject than to
// stream through the queue. A body with no declared size (chunked transfer
// encoding, declaredSize < 0) always streams, regardless of uploadMode,
// since buffering it whole without a known bound risks either truncating
// or exhausting memory on an unexpectedly large upload.
func (fs *FileSystem) useDirectUpload(declaredSize int64) bool {
	if declaredSize == 0 {
		return true
	}
	if declaredSize < 0 {
		return false
	}
	if fs.cfg.Multipart.UploadMode == "direct" {
		return true
	}
	return fs.cfg.Multipart.DirectThreshold > 0 && declaredSize <= fs.cfg.Multipart.DirectThreshold
}

// directPut buffers declaredSize bytes and issues a single PutObject, the
// fast path for empty or small known-size bodies. Callers only reach this
// with declaredSize >= 0 (see useDirectUpload).
func (fs *FileSystem) directPut(ctx context.Context, res pathresolver.Resolution, body io.Reader, declaredSize int64, contentType string) (string, int64, error) {
	data, rerr := io.ReadAll(io.LimitReader(body, declaredSize))
	if rerr != nil {
		return "", 0, rerr
	}

	etag, perr := res.Driver.Put(ctx, res.ObjectKey, bytes.NewReader(data), int64(len(data)), contentType)
	if perr != nil {
		return "", 0, perr
	}
	return etag, int64(len(data)), nil
}

func (fs *FileSystem) defaultSignedTtl(ctx context.Context, storageConfigID string) time.Duration {
	row, found, err := fs.store.GetStorageConfig(ctx, storageConfigID)
	if err != nil || !found || row.DefaultSignedTtlS <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(row.DefaultSignedTtlS) * time.Second
}
