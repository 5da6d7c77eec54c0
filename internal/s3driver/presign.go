package s3driver

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sabouaram/storegate/internal/gwtypes"
	"github.com/sabouaram/storegate/pkg/mimeclass"
)

// Disposition selects the Content-Disposition shape for a presigned GET.
type Disposition int

const (
	DispositionInline Disposition = iota
	DispositionAttachment
)

// PresignGetOptions configures a presigned GET URL.
type PresignGetOptions struct {
	Filename    string
	ContentType string
	Disposition Disposition
	Expiry      time.Duration
}

// PresignGet signs a GET URL with response-content-disposition and
// response-content-type overrides, forcing text-family previews to
// text/plain; charset=UTF-8.
func (d *Driver) PresignGet(ctx context.Context, key gwtypes.ObjectKey, opts PresignGetOptions) (string, error) {
	contentType := opts.ContentType
	if opts.Disposition == DispositionInline && mimeclass.IsTextFamily(opts.Filename, contentType) {
		contentType = "text/plain; charset=UTF-8"
	} else if mimeclass.IsTextual(contentType) && !strings.Contains(contentType, "charset") {
		contentType += "; charset=UTF-8"
	}

	disposition := "inline"
	if opts.Disposition == DispositionAttachment {
		disposition = fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(opts.Filename))
	}

	out, err := d.presignCli.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(d.bucket),
		Key:                        aws.String(key.String()),
		ResponseContentDisposition: aws.String(disposition),
		ResponseContentType:        aws.String(contentType),
	}, s3.WithPresignExpires(opts.Expiry))
	if err != nil {
		return "", mapAWSErr(err)
	}

	return out.URL, nil
}

// PresignPut signs a PUT URL with a server-inferred content type. The
// caller-declared content type is never trusted; the filename drives MIME
// inference instead.
func (d *Driver) PresignPut(ctx context.Context, key gwtypes.ObjectKey, filename string, expiry time.Duration) (string, string, error) {
	contentType := mimeclass.InferFromFilename(filename)

	out, err := d.presignCli.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key.String()),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", "", mapAWSErr(err)
	}

	return out.URL, contentType, nil
}
