package filesystem

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	gwerr "github.com/sabouaram/storegate/internal/gwerrors"
	"github.com/sabouaram/storegate/internal/gwtypes"
	"github.com/sabouaram/storegate/internal/metastore"
	"github.com/sabouaram/storegate/internal/s3driver"
)

// BatchCopyResult is the outcome of one item within a BatchCopy call.
type BatchCopyResult struct {
	SourcePath             string `json:"sourcePath"`
	DestPath               string `json:"destPath"`
	Succeeded              bool   `json:"succeeded"`
	Reason                 string `json:"reason,omitempty"`
	RequiresClientSideCopy bool   `json:"requiresClientSideCopy,omitempty"`
}

// BatchCopyPair is one requested source/destination pair for BatchCopy.
type BatchCopyPair struct {
	SourcePath string `json:"sourcePath"`
	DestPath   string `json:"destPath"`
}

// BatchCopy copies each pair independently, collecting per-pair results
// rather than aborting the batch on the first failure. Pairs whose source
// and destination resolve to the same storage config use a server-side S3
// CopyObject; pairs crossing storage configs cannot be copied server-side
// and are reported with requiresClientSideCopy so the caller falls back to
// download+upload.
func (fs *FileSystem) BatchCopy(ctx context.Context, pairs []BatchCopyPair, auth gwtypes.AuthResult) []BatchCopyResult {
	collector := newBatchCollector()
	results := make([]BatchCopyResult, 0, len(pairs))

	for _, pair := range pairs {
		srcRes, serr := fs.resolve(pair.SourcePath, auth)
		if serr != nil {
			collector.Add(serr)
			results = append(results, BatchCopyResult{SourcePath: pair.SourcePath, DestPath: pair.DestPath, Reason: serr.Error()})
			continue
		}
		dstRes, derr := fs.resolve(pair.DestPath, auth)
		if derr != nil {
			collector.Add(derr)
			results = append(results, BatchCopyResult{SourcePath: pair.SourcePath, DestPath: pair.DestPath, Reason: derr.Error()})
			continue
		}

		if srcRes.Mount.StorageConfigID != dstRes.Mount.StorageConfigID {
			results = append(results, BatchCopyResult{
				SourcePath:             pair.SourcePath,
				DestPath:               pair.DestPath,
				RequiresClientSideCopy: true,
			})
			continue
		}

		if cerr := srcRes.Driver.Copy(ctx, srcRes.ObjectKey, dstRes.ObjectKey); cerr != nil {
			collector.Add(cerr)
			results = append(results, BatchCopyResult{SourcePath: pair.SourcePath, DestPath: pair.DestPath, Reason: cerr.Error()})
			continue
		}

		vp, _ := gwtypes.Canonicalize(pair.DestPath)
		fs.touchAncestors(ctx, dstRes.Mount.ID, vp)
		results = append(results, BatchCopyResult{SourcePath: pair.SourcePath, DestPath: pair.DestPath, Succeeded: true})
	}

	if collector.Len() == 0 {
		fs.log.Debug("batch copy completed without errors", map[string]any{"count": len(pairs)})
	}
	return results
}

// SearchResult is one hit from Search.
type SearchResult struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Search performs a case-insensitive substring match on object names over
// every mount the principal can reach, requiring at least two characters of
// query to bound the scan. It returns at most limit hits (a limit outside
// 1..500 becomes 200), sorted newest first; there is no offset, so hits
// past the first limit cannot be paged through.
func (fs *FileSystem) Search(ctx context.Context, query string, auth gwtypes.AuthResult, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(strings.ToLower(query))
	if len(query) < 2 {
		return nil, gwerr.New(gwerr.InvalidPath, "search query must be at least 2 characters")
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	var out []SearchResult
	for _, mount := range fs.listMounts() {
		vp := mount.NormalizedPath()
		if !auth.Allows(vp) {
			continue
		}
		driver, _, ok := fs.lookupDriver(mount.StorageConfigID)
		if !ok {
			continue
		}

		objects, err := driver.ListAllFlat(ctx, "")
		if err != nil {
			fs.log.Warn("search scan failed for mount", map[string]any{"mount": mount.MountPath, "error": err.Error()})
			continue
		}

		for _, obj := range objects {
			if gwtypes.ObjectKey(obj.Key).IsRootMarker() || strings.HasSuffix(obj.Key, "/") {
				continue
			}
			name := obj.Key
			if idx := strings.LastIndex(obj.Key, "/"); idx >= 0 {
				name = obj.Key[idx+1:]
			}
			if !strings.Contains(strings.ToLower(name), query) {
				continue
			}
			full := strings.TrimSuffix(string(vp), "/") + "/" + obj.Key
			out = append(out, SearchResult{Path: full, Name: name, Size: obj.Size, Modified: obj.Modified})
			if len(out) >= limit {
				sort.Slice(out, func(i, j int) bool { return out[i].Modified.After(out[j].Modified) })
				return out, nil
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Modified.After(out[j].Modified) })
	return out, nil
}

// PresignResult is the outcome of PresignGet/PresignPut.
type PresignResult struct {
	URL       string `json:"url"`
	ObjectKey string `json:"objectKey"`
	FileID    string `json:"fileId"`
}

// PresignGet signs a GET URL with content-disposition/content-type
// overrides, forcing text-family previews to text/plain.
func (fs *FileSystem) PresignGet(ctx context.Context, raw string, attachment bool, auth gwtypes.AuthResult) (PresignResult, error) {
	res, err := fs.resolve(raw, auth)
	if err != nil {
		return PresignResult{}, err
	}

	_, _, contentType, _, herr := res.Driver.Head(ctx, res.ObjectKey)
	if herr != nil {
		return PresignResult{}, herr
	}

	filename := res.SubPath
	if idx := strings.LastIndex(strings.TrimSuffix(filename, "/"), "/"); idx >= 0 {
		filename = filename[idx+1:]
	}

	disposition := s3driver.DispositionInline
	if attachment {
		disposition = s3driver.DispositionAttachment
	}

	expiry := fs.defaultSignedTtl(ctx, res.Mount.StorageConfigID)
	url, perr := res.Driver.PresignGet(ctx, res.ObjectKey, s3driver.PresignGetOptions{
		Filename:    filename,
		ContentType: contentType,
		Disposition: disposition,
		Expiry:      expiry,
	})
	if perr != nil {
		return PresignResult{}, perr
	}

	return PresignResult{URL: url, ObjectKey: res.ObjectKey.String(), FileID: newUploadID()}, nil
}

// PresignPut signs a PUT URL with a server-inferred content type (the
// caller-declared type is never trusted).
func (fs *FileSystem) PresignPut(ctx context.Context, raw, filename string, auth gwtypes.AuthResult) (PresignResult, error) {
	res, err := fs.resolve(raw, auth)
	if err != nil {
		return PresignResult{}, err
	}

	expiry := fs.defaultSignedTtl(ctx, res.Mount.StorageConfigID)
	url, _, perr := res.Driver.PresignPut(ctx, res.ObjectKey, filename, expiry)
	if perr != nil {
		return PresignResult{}, perr
	}

	return PresignResult{URL: url, ObjectKey: res.ObjectKey.String(), FileID: newUploadID()}, nil
}

// CommitPresignedUpload records the completed out-of-band upload into the
// shared-file table so the short-link
// download path can resolve it, and refreshes usage/cache state exactly
// like a direct upload would.
func (fs *FileSystem) CommitPresignedUpload(ctx context.Context, raw, objectKey, fileID, filename string, auth gwtypes.AuthResult) error {
	res, err := fs.resolve(raw, auth)
	if err != nil {
		return err
	}
	if res.ObjectKey.String() != objectKey {
		return gwerr.New(gwerr.Conflict, "committed object key does not match resolved path")
	}

	size, _, contentType, etag, herr := res.Driver.Head(ctx, res.ObjectKey)
	if herr != nil {
		return gwerr.Wrap(gwerr.NotFound, herr, "presigned upload was not found at commit time")
	}

	_ = fs.store.AdjustStorageUsage(ctx, res.Mount.StorageConfigID, size)

	slug := fileID
	if slug == "" {
		slug = uuid.NewString()
	}
	if serr := fs.store.UpsertSharedFile(ctx, metastore.SharedFile{
		ID:          uuid.NewString(),
		Slug:        slug,
		MountID:     res.Mount.ID,
		ObjectKey:   objectKey,
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   size,
		ETag:        etag,
	}); serr != nil {
		return serr
	}

	vp, _ := gwtypes.Canonicalize(raw)
	fs.touchAncestors(ctx, res.Mount.ID, vp)
	return nil
}

// UpdateInline performs an in-place content replacement for small text
// files edited through the browser preview, reusing the direct-upload path
// at the same object key.
func (fs *FileSystem) UpdateInline(ctx context.Context, raw, content string, auth gwtypes.AuthResult) (UploadResult, error) {
	res, err := fs.resolve(raw, auth)
	if err != nil {
		return UploadResult{}, err
	}

	body := []byte(content)
	contentType := "text/plain; charset=UTF-8"

	if cerr := fs.checkCapacity(ctx, res.Mount.StorageConfigID, int64(len(body))); cerr != nil {
		return UploadResult{}, cerr
	}

	etag, perr := res.Driver.Put(ctx, res.ObjectKey, bytes.NewReader(body), int64(len(body)), contentType)
	if perr != nil {
		return UploadResult{}, perr
	}

	_ = fs.store.AdjustStorageUsage(ctx, res.Mount.StorageConfigID, int64(len(body)))

	vp, _ := gwtypes.Canonicalize(raw)
	fs.touchAncestors(ctx, res.Mount.ID, vp)

	return UploadResult{ObjectKey: res.ObjectKey, ETag: etag, Size: int64(len(body)), Mimetype: contentType}, nil
}
