package webdavfs

import (
	"encoding/xml"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sabouaram/storegate/internal/gwtypes"
)

type multistatus struct {
	XMLName   xml.Name   `xml:"D:multistatus"`
	DAVNS     string     `xml:"xmlns:D,attr"`
	Responses []response `xml:"D:response"`
}

type response struct {
	Href     string   `xml:"D:href"`
	Propstat propstat `xml:"D:propstat"`
}

type propstat struct {
	Prop   prop   `xml:"D:prop"`
	Status string `xml:"D:status"`
}

type resourceType struct {
	Collection *struct{} `xml:"D:collection"`
}

type prop struct {
	DisplayName   string        `xml:"D:displayname"`
	ResourceType  *resourceType `xml:"D:resourcetype"`
	ContentLength int64         `xml:"D:getcontentlength,omitempty"`
	ContentType   string        `xml:"D:getcontenttype,omitempty"`
	LastModified  string        `xml:"D:getlastmodified,omitempty"`
	ETag          string        `xml:"D:getetag,omitempty"`
}

// handlePropfind serves PROPFIND: Depth 0 returns the target entry's own
// properties; Depth 1 also lists immediate children.
func (h *Handler) handlePropfind(c *gin.Context, path string, auth gwtypes.AuthResult) {
	entry, err := h.fs.Stat(c.Request.Context(), path, auth)
	if err != nil {
		h.writeError(c, err)
		return
	}

	href := davHref(path)
	ms := multistatus{DAVNS: "DAV:"}
	ms.Responses = append(ms.Responses, propsFor(href, entry))

	depth := c.GetHeader("Depth")
	if entry.IsDirectory && depth != "0" {
		listing, lerr := h.fs.List(c.Request.Context(), path, auth)
		if lerr != nil {
			h.writeError(c, lerr)
			return
		}
		for _, child := range listing.Entries {
			childHref := davHref(strings.TrimSuffix(path, "/") + "/" + child.Name)
			ms.Responses = append(ms.Responses, propsFor(childHref, child))
		}
	}

	c.Status(207)
	c.Header("Content-Type", "application/xml; charset=utf-8")
	_, _ = c.Writer.WriteString(xml.Header)
	_ = xml.NewEncoder(c.Writer).Encode(ms)
}

func propsFor(href string, entry gwtypes.DirEntry) response {
	p := prop{
		DisplayName:  entry.Name,
		LastModified: entry.Modified.UTC().Format(http.TimeFormat),
		ETag:         entry.ETag,
	}
	if entry.IsDirectory {
		p.ResourceType = &resourceType{Collection: &struct{}{}}
	} else {
		p.ResourceType = &resourceType{}
		p.ContentLength = entry.Size
		p.ContentType = entry.Mimetype
	}
	return response{
		Href:     href,
		Propstat: propstat{Prop: p, Status: "HTTP/1.1 200 OK"},
	}
}

func davHref(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// handleProppatch is a no-op success: arbitrary dead property storage is
// out of scope, but clients expect a 207 multistatus acknowledging the
// request rather than an error.
func (h *Handler) handleProppatch(c *gin.Context, path string) {
	vp, verr := gwtypes.Canonicalize(path)
	if verr != nil {
		h.writeError(c, verr)
		return
	}
	if err := h.locks.Check(vp, lockTokenFromIf(c.GetHeader("If"))); err != nil {
		h.writeError(c, err)
		return
	}

	href := davHref(path)
	ms := multistatus{DAVNS: "DAV:", Responses: []response{{
		Href:     href,
		Propstat: propstat{Status: "HTTP/1.1 200 OK"},
	}}}
	c.Status(207)
	c.Header("Content-Type", "application/xml; charset=utf-8")
	_, _ = c.Writer.WriteString(xml.Header)
	_ = xml.NewEncoder(c.Writer).Encode(ms)
}

func lockDepthString(d gwtypes.LockDepth) string {
	if d == gwtypes.DepthZero {
		return "0"
	}
	return "infinity"
}
