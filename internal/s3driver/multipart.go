package s3driver

import (
	"bytes"
	"context"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	gwerr "github.com/sabouaram/storegate/internal/gwerrors"
	"github.com/sabouaram/storegate/internal/gwtypes"
)

// MinPartSize is the S3-mandated minimum size for a non-final multipart
// part.
const MinPartSize = 5 * 1024 * 1024

// RecommendedPartSize returns the recommended part size reported from
// initiate: MinPartSize (5 MiB) for every provider.
func (d *Driver) RecommendedPartSize() int64 {
	return MinPartSize
}

// InitiateMultipart begins a backend multipart upload (Mode A), returning
// the upload id clients reference in subsequent part/complete/abort calls.
func (d *Driver) InitiateMultipart(ctx context.Context, key gwtypes.ObjectKey, contentType string) (string, error) {
	out, err := d.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key.String()),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", mapAWSErr(err)
	}
	return aws.ToString(out.UploadId), nil
}

// UploadPart uploads one part of an in-progress backend multipart upload,
// with per-part retry (3 attempts, 1s*2^(attempt-1) backoff).
func (d *Driver) UploadPart(ctx context.Context, key gwtypes.ObjectKey, uploadID string, partNumber int32, body []byte) (string, error) {
	var etag string
	attempts := 3
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := d.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(d.bucket),
			Key:        aws.String(key.String()),
			UploadId:   aws.String(uploadID),
			PartNumber: aws.Int32(partNumber),
			Body:       bytes.NewReader(body),
		})
		if err == nil {
			etag = aws.ToString(out.ETag)
			return etag, nil
		}
		if attempt == attempts {
			return "", mapAWSErr(err)
		}
		if !sleepBackoff(ctx, attempt) {
			return "", ctx.Err()
		}
	}
	return etag, nil
}

// CompleteMultipart finalises a backend multipart upload with the submitted
// part list.
func (d *Driver) CompleteMultipart(ctx context.Context, key gwtypes.ObjectKey, uploadID string, parts []gwtypes.UploadPart) (etag string, err error) {
	sorted := make([]gwtypes.UploadPart, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	completed := make([]s3types.CompletedPart, 0, len(sorted))
	for _, p := range sorted {
		completed = append(completed, s3types.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		})
	}

	out, cerr := d.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(d.bucket),
		Key:             aws.String(key.String()),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: completed},
	})
	if cerr != nil {
		return "", mapAWSErr(cerr)
	}

	etag = aws.ToString(out.ETag)
	if etag == "" {
		// missing etag is accepted; logging is done by the filesystem façade,
		// which has a logger handle and recovers it via a follow-up Head.
		return "", nil
	}
	return etag, nil
}

// AbortMultipart releases the multipart upload's server-side state. Errors
// are swallowed: callers return success regardless of the abort outcome.
func (d *Driver) AbortMultipart(ctx context.Context, key gwtypes.ObjectKey, uploadID string) {
	_, _ = d.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(d.bucket),
		Key:      aws.String(key.String()),
		UploadId: aws.String(uploadID),
	})
}

// StreamUploadOptions configures the Mode B server-side streaming
// multipart pipeline.
type StreamUploadOptions struct {
	ContentType string
	QueueDepth  int
	PartSize    int64
}

// StreamUpload consumes r to EOF as a bounded-memory streaming multipart
// upload (Mode B, used for WebDAV PUT and chunked-encoded uploads). At most
// (QueueDepth+2) x PartSize bytes are resident at once: QueueDepth parts in
// flight, one copied part waiting for a free slot, and the read buffer;
// parts upload concurrently up to QueueDepth via errgroup. On zero total bytes, falls
// back to a single empty PutObject (object stores reject zero-byte
// multipart completes).
func (d *Driver) StreamUpload(ctx context.Context, key gwtypes.ObjectKey, r io.Reader, opts StreamUploadOptions) (etag string, size int64, err error) {
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = 2
	}
	if opts.PartSize <= 0 {
		opts.PartSize = MinPartSize
	}

	uploadID, err := d.InitiateMultipart(ctx, key, opts.ContentType)
	if err != nil {
		return "", 0, err
	}

	var (
		totalBytes int64
		parts      []gwtypes.UploadPart
		partNumber int32
	)

	abortAndFail := func(cause error) (string, int64, error) {
		d.AbortMultipart(ctx, key, uploadID)
		return "", 0, cause
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.QueueDepth)

	var partsCh = make(chan gwtypes.UploadPart, opts.QueueDepth*2)
	var collectDone = make(chan struct{})
	go func() {
		for p := range partsCh {
			parts = append(parts, p)
		}
		close(collectDone)
	}()

	buf := make([]byte, opts.PartSize)
	for {
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			totalBytes += int64(n)
			partNumber++
			pn := partNumber
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			eg.Go(func() error {
				etag, uerr := d.UploadPart(egctx, key, uploadID, pn, chunk)
				if uerr != nil {
					return uerr
				}
				partsCh <- gwtypes.UploadPart{PartNumber: pn, ETag: etag}
				return nil
			})
		}

		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			_ = eg.Wait()
			close(partsCh)
			<-collectDone
			return abortAndFail(gwerr.Wrap(gwerr.Internal, rerr, "reading upload stream"))
		}
	}

	if werr := eg.Wait(); werr != nil {
		close(partsCh)
		<-collectDone
		return abortAndFail(werr)
	}
	close(partsCh)
	<-collectDone

	if totalBytes == 0 {
		d.AbortMultipart(ctx, key, uploadID)
		tag, perr := d.Put(ctx, key, bytes.NewReader(nil), 0, opts.ContentType)
		return tag, 0, perr
	}

	tag, cerr := d.CompleteMultipart(ctx, key, uploadID, parts)
	if cerr != nil {
		return abortAndFail(cerr)
	}
	return tag, totalBytes, nil
}

func sleepBackoff(ctx context.Context, attempt int) bool {
	d := backoffFor(attempt)
	select {
	case <-ctx.Done():
		return false
	case <-timeAfter(d):
		return true
	}
}
