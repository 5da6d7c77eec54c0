package gwtypes

import "time"

// DirEntry is one entry within a DirectoryListing.
type DirEntry struct {
	Name        string    `json:"name"`
	IsDirectory bool      `json:"isDirectory"`
	Size        int64     `json:"size"`
	Modified    time.Time `json:"modified"`
	Mimetype    string    `json:"mimetype,omitempty"`
	ETag        string    `json:"etag,omitempty"`
	PreviewUrl  string    `json:"previewUrl,omitempty"`
	DownloadUrl string    `json:"downloadUrl,omitempty"`
}

// DirectoryListing is a snapshot of one directory's contents, aggregated
// from an S3 ListObjectsV2 call with Delimiter="/".
type DirectoryListing struct {
	Path        VirtualPath `json:"path"`
	Entries     []DirEntry  `json:"entries"`
	RefreshedAt time.Time   `json:"refreshedAt"`
}

// UploadSession is server-side state for a backend multipart upload (Mode A).
// It is never persisted: the caller holds UploadID and ObjectKey across
// initiate/part/complete/abort calls.
type UploadSession struct {
	UploadID            string
	ObjectKey           ObjectKey
	StorageConfigID      string
	RecommendedPartSize int64
	StartedBy            string
	StartedAt            time.Time
	Parts                []UploadPart
}

// UploadPart is one committed part of an in-progress multipart upload.
type UploadPart struct {
	PartNumber int32  `json:"partNumber"`
	ETag       string `json:"etag"`
}

// LockScope is the WebDAV lock scope.
type LockScope string

const (
	ScopeExclusive LockScope = "exclusive"
	ScopeShared    LockScope = "shared"
)

// LockDepth is the WebDAV lock depth.
type LockDepth int

const (
	DepthZero     LockDepth = 0
	DepthInfinity LockDepth = -1
)

// Lock is an advisory, in-memory WebDAV lock entry.
type Lock struct {
	Token     string
	Path      VirtualPath
	Depth     LockDepth
	Owner     string
	Scope     LockScope
	Timeout   time.Duration
	ExpiresAt time.Time
}

// Expired reports whether the lock has passed its expiry at the given time.
func (l Lock) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// Conflicts reports whether this lock blocks a mutation at targetPath,
// honouring depth-infinity locks conflicting with any descendant.
func (l Lock) Conflicts(targetPath VirtualPath) bool {
	if l.Scope != ScopeExclusive {
		return false
	}
	if l.Path == targetPath {
		return true
	}
	if l.Depth == DepthInfinity && targetPath.HasPrefix(l.Path) {
		return true
	}
	return false
}
