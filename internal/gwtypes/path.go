// Package gwtypes defines the core domain types shared across the storage
// gateway: virtual paths, object keys, mounts, storage configs, principals,
// directory listings, upload sessions and WebDAV locks.
package gwtypes

import (
	"strings"

	gwerr "github.com/sabouaram/storegate/internal/gwerrors"
)

// RootMarkerKey is the sentinel object key used to represent an empty
// object-store key after resolution (operations targeting a storage root).
const RootMarkerKey = "_MARK_ROOT_DONT_DELETE_ME/"

// VirtualPath is a canonicalised, forward-slash, POSIX-like path.
// A trailing slash denotes a directory. The empty path is equivalent to "/".
type VirtualPath string

// Canonicalize normalises a raw path string into a VirtualPath: single
// leading slash, no duplicate slashes, no "." or ".." segments.
func Canonicalize(raw string) (VirtualPath, error) {
	if raw == "" {
		return "/", nil
	}

	isDir := strings.HasSuffix(raw, "/")

	segs := strings.Split(raw, "/")
	clean := make([]string, 0, len(segs))
	for _, s := range segs {
		switch s {
		case "", ".":
			continue
		case "..":
			return "", gwerr.New(gwerr.InvalidPath, "path segment '..' is not allowed: %s", raw)
		default:
			clean = append(clean, s)
		}
	}

	out := "/" + strings.Join(clean, "/")
	if isDir && out != "/" {
		out += "/"
	}

	return VirtualPath(out), nil
}

// IsDir reports whether the path denotes a directory (trailing slash).
func (p VirtualPath) IsDir() bool {
	return strings.HasSuffix(string(p), "/") || p == "/"
}

// String returns the path as a plain string.
func (p VirtualPath) String() string {
	return string(p)
}

// HasPrefix reports whether p is contained within the directory prefix.
func (p VirtualPath) HasPrefix(prefix VirtualPath) bool {
	ps, pr := string(p), string(prefix)
	if pr == "/" {
		return true
	}
	if !strings.HasSuffix(pr, "/") {
		pr += "/"
	}
	return ps == strings.TrimSuffix(pr, "/") || strings.HasPrefix(ps, pr)
}

// TrimPrefix strips the given mount prefix, returning the remaining sub-path
// with no leading slash.
func (p VirtualPath) TrimPrefix(prefix VirtualPath) string {
	ps, pr := string(p), string(prefix)
	if pr != "/" {
		pr = strings.TrimSuffix(pr, "/")
	} else {
		pr = ""
	}
	rest := strings.TrimPrefix(ps, pr)
	return strings.TrimPrefix(rest, "/")
}

// Parent returns the parent directory VirtualPath of p.
func (p VirtualPath) Parent() VirtualPath {
	s := strings.TrimSuffix(string(p), "/")
	idx := strings.LastIndex(s, "/")
	if idx <= 0 {
		return "/"
	}
	return VirtualPath(s[:idx] + "/")
}

// Ancestors returns every directory VirtualPath from "/" down to (and
// including) the parent of p, in root-to-leaf order; when p is itself a
// directory, p is the last element.
func (p VirtualPath) Ancestors() []VirtualPath {
	s := strings.TrimSuffix(string(p), "/")
	segs := strings.Split(strings.Trim(s, "/"), "/")
	out := []VirtualPath{"/"}
	acc := ""
	for i, seg := range segs {
		if seg == "" {
			continue
		}
		if i == len(segs)-1 && !p.IsDir() {
			// last segment is the file itself, not an ancestor directory
			break
		}
		acc += "/" + seg
		out = append(out, VirtualPath(acc+"/"))
	}
	return out
}

// ObjectKey is the object-store key computed from a VirtualPath and its
// resolving mount's rootPrefix.
type ObjectKey string

// ComputeObjectKey derives the object-store key from a rootPrefix and a
// sub-path (already stripped of the mount prefix).
func ComputeObjectKey(rootPrefix, subPath string, isDir bool) ObjectKey {
	key := strings.TrimPrefix(rootPrefix, "/") + subPath
	key = strings.TrimPrefix(key, "/")

	if key == "" {
		return RootMarkerKey
	}

	if isDir && !strings.HasSuffix(key, "/") {
		key += "/"
	}

	return ObjectKey(key)
}

// String returns the key as a plain string.
func (k ObjectKey) String() string {
	return string(k)
}

// IsRootMarker reports whether the key is the sentinel root marker object.
func (k ObjectKey) IsRootMarker() bool {
	return string(k) == RootMarkerKey
}
