package httpsurface

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sabouaram/storegate/internal/authresolver"
	"github.com/sabouaram/storegate/internal/filesystem"
	gwerr "github.com/sabouaram/storegate/internal/gwerrors"
	"github.com/sabouaram/storegate/internal/gwtypes"
)

func (a *API) list(c *gin.Context) {
	auth := authresolver.FromContext(c)
	path := c.Query("path")
	listing, err := a.fs.List(c.Request.Context(), path, auth)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, listing)
}

func (a *API) stat(c *gin.Context) {
	auth := authresolver.FromContext(c)
	path := c.Query("path")
	entry, err := a.fs.Stat(c.Request.Context(), path, auth)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, entry)
}

func (a *API) download(c *gin.Context) {
	auth := authresolver.FromContext(c)
	path := c.Query("path")
	rng := c.GetHeader("Range")

	res, err := a.fs.ResolveForDownload(c.Request.Context(), path, auth, rng)
	if err != nil {
		fail(c, err)
		return
	}
	defer res.Body.Close()

	c.Header("Content-Type", res.ContentType)
	c.Header("ETag", res.ETag)
	c.Status(200)
	_, _ = io.Copy(c.Writer, res.Body)
}

type mkdirRequest struct {
	Path string `json:"path" binding:"required"`
}

func (a *API) mkdir(c *gin.Context) {
	auth := authresolver.FromContext(c)
	var req mkdirRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "path is required")
		return
	}
	if err := a.fs.Mkdir(c.Request.Context(), req.Path, auth); err != nil {
		fail(c, err)
		return
	}
	created(c, gin.H{"path": req.Path})
}

func (a *API) upload(c *gin.Context) {
	auth := authresolver.FromContext(c)
	path := c.Query("path")
	filename := c.Query("filename")
	if path == "" || filename == "" {
		badRequest(c, "path and filename are required")
		return
	}

	result, err := a.fs.Upload(c.Request.Context(), path, filename, c.Request.Body, c.Request.ContentLength, auth)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, result)
}

type multipartInitRequest struct {
	Path          string `json:"path" binding:"required"`
	ContentType   string `json:"contentType"`
	DeclaredSize  int64  `json:"declaredSize"`
}

func (a *API) multipartInit(c *gin.Context) {
	auth := authresolver.FromContext(c)
	var req multipartInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "path is required")
		return
	}
	result, err := a.fs.InitiateMultipart(c.Request.Context(), req.Path, req.ContentType, req.DeclaredSize, auth)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, result)
}

func (a *API) multipartPart(c *gin.Context) {
	auth := authresolver.FromContext(c)
	path := c.Query("path")
	uploadID := c.Query("uploadId")
	partNumber, _ := strconv.Atoi(c.Query("partNumber"))
	if path == "" || uploadID == "" || partNumber <= 0 {
		badRequest(c, "path, uploadId and partNumber are required")
		return
	}

	body, rerr := io.ReadAll(c.Request.Body)
	if rerr != nil {
		fail(c, gwerr.Wrap(gwerr.Internal, rerr, "reading part body"))
		return
	}

	etag, err := a.fs.UploadPart(c.Request.Context(), path, uploadID, int32(partNumber), body, auth)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"etag": etag, "partNumber": partNumber})
}

type multipartCompleteRequest struct {
	Path     string                `json:"path" binding:"required"`
	UploadID string                `json:"uploadId" binding:"required"`
	Parts    []gwtypes.UploadPart `json:"parts" binding:"required"`
}

func (a *API) multipartComplete(c *gin.Context) {
	auth := authresolver.FromContext(c)
	var req multipartCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "path, uploadId and parts are required")
		return
	}
	result, err := a.fs.CompleteMultipart(c.Request.Context(), req.Path, req.UploadID, req.Parts, auth)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

type multipartAbortRequest struct {
	Path     string `json:"path" binding:"required"`
	UploadID string `json:"uploadId" binding:"required"`
}

func (a *API) multipartAbort(c *gin.Context) {
	auth := authresolver.FromContext(c)
	var req multipartAbortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "path and uploadId are required")
		return
	}
	_ = a.fs.AbortMultipart(c.Request.Context(), req.Path, req.UploadID, auth)
	noContent(c)
}

type presignRequest struct {
	Path       string `json:"path" binding:"required"`
	Mode       string `json:"mode" binding:"required"` // get | put
	Filename   string `json:"filename"`
	Attachment bool   `json:"attachment"`
}

func (a *API) presign(c *gin.Context) {
	auth := authresolver.FromContext(c)
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "path and mode are required")
		return
	}

	var (
		result filesystem.PresignResult
		err    error
	)
	switch req.Mode {
	case "get":
		result, err = a.fs.PresignGet(c.Request.Context(), req.Path, req.Attachment, auth)
	case "put":
		result, err = a.fs.PresignPut(c.Request.Context(), req.Path, req.Filename, auth)
	default:
		badRequest(c, "mode must be get or put")
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

type presignCommitRequest struct {
	Path      string `json:"path" binding:"required"`
	ObjectKey string `json:"objectKey" binding:"required"`
	FileID    string `json:"fileId"`
	Filename  string `json:"filename"`
}

func (a *API) presignCommit(c *gin.Context) {
	auth := authresolver.FromContext(c)
	var req presignCommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "path and objectKey are required")
		return
	}
	if err := a.fs.CommitPresignedUpload(c.Request.Context(), req.Path, req.ObjectKey, req.FileID, req.Filename, auth); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"committed": true})
}

type renameRequest struct {
	OldPath string `json:"oldPath" binding:"required"`
	NewPath string `json:"newPath" binding:"required"`
}

func (a *API) rename(c *gin.Context) {
	auth := authresolver.FromContext(c)
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "oldPath and newPath are required")
		return
	}
	if err := a.fs.Rename(c.Request.Context(), req.OldPath, req.NewPath, auth); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"path": req.NewPath})
}

type removeRequest struct {
	Path string `json:"path" binding:"required"`
}

func (a *API) remove(c *gin.Context) {
	auth := authresolver.FromContext(c)
	var req removeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "path is required")
		return
	}
	if err := a.fs.Remove(c.Request.Context(), req.Path, auth); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

type batchRemoveRequest struct {
	Paths []string `json:"paths" binding:"required"`
}

func (a *API) batchRemove(c *gin.Context) {
	auth := authresolver.FromContext(c)
	var req batchRemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "paths is required")
		return
	}
	result := a.fs.BatchRemove(c.Request.Context(), req.Paths, auth)
	ok(c, result)
}

type batchCopyRequest struct {
	Pairs []filesystem.BatchCopyPair `json:"pairs" binding:"required"`
}

func (a *API) batchCopy(c *gin.Context) {
	auth := authresolver.FromContext(c)
	var req batchCopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "pairs is required")
		return
	}
	results := a.fs.BatchCopy(c.Request.Context(), req.Pairs, auth)
	ok(c, results)
}

func (a *API) search(c *gin.Context) {
	auth := authresolver.FromContext(c)
	query := c.Query("q")
	limit := queryInt(c, "limit", 200)
	results, err := a.fs.Search(c.Request.Context(), query, auth, limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, results)
}

type updateRequest struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

func (a *API) update(c *gin.Context) {
	auth := authresolver.FromContext(c)
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "path is required")
		return
	}
	result, err := a.fs.UpdateInline(c.Request.Context(), req.Path, req.Content, auth)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}
