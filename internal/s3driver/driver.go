// Package s3driver wraps one S3-compatible endpoint behind a
// capability-scoped interface: object GET/PUT/DELETE/HEAD/COPY, multipart
// init/part/complete/abort, presigned URL signing, and delimiter-aware
// listing.
package s3driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	gwerr "github.com/sabouaram/storegate/internal/gwerrors"
	"github.com/sabouaram/storegate/internal/gwtypes"
)

// Capability is one operation a driver instance may support.
type Capability uint8

const (
	CapRead Capability = 1 << iota
	CapWrite
	CapList
	CapPresign
	CapMultipart
	CapCopy
	CapProxy
)

// AllCapabilities is the full set any standard S3-compatible driver supports.
const AllCapabilities = CapRead | CapWrite | CapList | CapPresign | CapMultipart | CapCopy | CapProxy

// RetryPolicy holds provider-tuned backoff and attempt-count parameters.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func retryPolicyFor(p gwtypes.ProviderType) RetryPolicy {
	switch p {
	case gwtypes.ProviderB2:
		return RetryPolicy{MaxAttempts: 4, BaseBackoff: 500 * time.Millisecond, MaxBackoff: 10 * time.Second}
	default:
		return RetryPolicy{MaxAttempts: 3, BaseBackoff: 500 * time.Millisecond, MaxBackoff: 10 * time.Second}
	}
}

// Driver wraps one S3-compatible bucket endpoint.
type Driver struct {
	client       *s3.Client
	presignCli   *s3.PresignClient
	bucket       string
	rootPrefix   string
	provider     gwtypes.ProviderType
	capabilities Capability
	retry        RetryPolicy
}

// New constructs a Driver for the given StorageConfig from plaintext
// credentials; the caller decrypts the stored keys first (see
// internal/gwconfig for ENCRYPTION_SECRET handling).
func New(ctx context.Context, cfg gwtypes.StorageConfig, accessKey, secretKey string) (*Driver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.Internal, err, "load aws config for storage config %s", cfg.ID)
	}

	cli := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &Driver{
		client:       cli,
		presignCli:   s3.NewPresignClient(cli),
		bucket:       cfg.Bucket,
		rootPrefix:   cfg.RootPrefix,
		provider:     cfg.ProviderType,
		capabilities: AllCapabilities,
		retry:        retryPolicyFor(cfg.ProviderType),
	}, nil
}

// HasCapability reports whether the driver supports the given capability,
// per the duck-typed-driver redesign: an explicit queryable enum instead of
// runtime type sniffing.
func (d *Driver) HasCapability(c Capability) bool {
	return d.capabilities&c != 0
}

// Bucket returns the bucket name this driver targets.
func (d *Driver) Bucket() string {
	return d.bucket
}

func (d *Driver) withRetry(ctx context.Context, idempotent bool, fn func() error) error {
	var lastErr error
	attempts := d.retry.MaxAttempts
	if !idempotent {
		attempts = 1
	}

	backoff := d.retry.BaseBackoff
	for i := 0; i < attempts; i++ {
		if err := fn(); err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > d.retry.MaxBackoff {
				backoff = d.retry.MaxBackoff
			}
			continue
		}
		return nil
	}
	return gwerr.Wrap(gwerr.UpstreamUnavailable, lastErr, "upstream failed after %d attempts", attempts)
}

// Get streams the object's body. Caller must close the returned ReadCloser.
func (d *Driver) Get(ctx context.Context, key gwtypes.ObjectKey, rng string) (io.ReadCloser, map[string]string, error) {
	in := &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key.String()),
	}
	if rng != "" {
		in.Range = aws.String(rng)
	}

	out, err := d.client.GetObject(ctx, in)
	if err != nil {
		return nil, nil, mapAWSErr(err)
	}

	meta := map[string]string{
		"ContentType":   aws.ToString(out.ContentType),
		"ETag":          aws.ToString(out.ETag),
		"ContentLength": fmt.Sprintf("%d", aws.ToInt64(out.ContentLength)),
	}
	return out.Body, meta, nil
}

// Head returns object metadata without the body, falling back to a ranged
// GET when the endpoint rejects HEAD (some S3-compatible services do).
func (d *Driver) Head(ctx context.Context, key gwtypes.ObjectKey) (size int64, modified time.Time, contentType, etag string, err error) {
	out, herr := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key.String()),
	})
	if herr == nil {
		return aws.ToInt64(out.ContentLength), aws.ToTime(out.LastModified), aws.ToString(out.ContentType), aws.ToString(out.ETag), nil
	}

	if !isMethodRejected(herr) {
		return 0, time.Time{}, "", "", mapAWSErr(herr)
	}

	body, meta, gerr := d.Get(ctx, key, "bytes=0-0")
	if gerr != nil {
		return 0, time.Time{}, "", "", gerr
	}
	_ = body.Close()
	return 0, time.Time{}, meta["ContentType"], meta["ETag"], nil
}

// Put writes an object in a single request.
func (d *Driver) Put(ctx context.Context, key gwtypes.ObjectKey, body io.Reader, size int64, contentType string) (etag string, err error) {
	err = d.withRetry(ctx, true, func() error {
		out, perr := d.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(d.bucket),
			Key:           aws.String(key.String()),
			Body:          body,
			ContentLength: aws.Int64(size),
			ContentType:   aws.String(contentType),
		})
		if perr != nil {
			return perr
		}
		etag = aws.ToString(out.ETag)
		return nil
	})
	if err != nil {
		return "", mapAWSErr(err)
	}
	return etag, nil
}

// Delete removes a single object.
func (d *Driver) Delete(ctx context.Context, key gwtypes.ObjectKey) error {
	return d.withRetry(ctx, true, func() error {
		_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(d.bucket),
			Key:    aws.String(key.String()),
		})
		return mapAWSErr(err)
	})
}

// DeleteBatch removes multiple objects in one DeleteObjects call (max 1000
// keys per S3 limits; caller chunks).
func (d *Driver) DeleteBatch(ctx context.Context, keys []gwtypes.ObjectKey) error {
	if len(keys) == 0 {
		return nil
	}
	ids := make([]s3types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, s3types.ObjectIdentifier{Key: aws.String(k.String())})
	}
	return d.withRetry(ctx, true, func() error {
		_, err := d.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(d.bucket),
			Delete: &s3types.Delete{Objects: ids},
		})
		return mapAWSErr(err)
	})
}

// Copy copies an object within the same bucket.
func (d *Driver) Copy(ctx context.Context, srcKey, dstKey gwtypes.ObjectKey) error {
	return d.withRetry(ctx, true, func() error {
		_, err := d.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(d.bucket),
			Key:        aws.String(dstKey.String()),
			CopySource: aws.String(d.bucket + "/" + srcKey.String()),
		})
		return mapAWSErr(err)
	})
}

// ListPage is one page of a ListObjectsV2 call with Delimiter="/".
type ListPage struct {
	CommonPrefixes []string
	Objects        []ObjectInfo
	NextToken      string
	IsTruncated    bool
}

// ObjectInfo is a single object row from a listing page.
type ObjectInfo struct {
	Key      string
	Size     int64
	Modified time.Time
	ETag     string
}

// ListPrefix lists one page of objects and common prefixes under prefix,
// delimited at "/". Used for directory listings, where one level of depth
// at a time is exactly what's wanted.
func (d *Driver) ListPrefix(ctx context.Context, prefix, continuationToken string) (ListPage, error) {
	return d.listPage(ctx, prefix, continuationToken, true)
}

// listPage is the shared ListObjectsV2 page fetch for both the delimited
// (single-level) and flat (recursive) listing callers.
func (d *Driver) listPage(ctx context.Context, prefix, continuationToken string, delimited bool) (ListPage, error) {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(prefix),
	}
	if delimited {
		in.Delimiter = aws.String("/")
	}
	if continuationToken != "" {
		in.ContinuationToken = aws.String(continuationToken)
	}

	out, err := d.client.ListObjectsV2(ctx, in)
	if err != nil {
		return ListPage{}, mapAWSErr(err)
	}

	page := ListPage{
		IsTruncated: aws.ToBool(out.IsTruncated),
		NextToken:   aws.ToString(out.NextContinuationToken),
	}
	for _, cp := range out.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	for _, o := range out.Contents {
		page.Objects = append(page.Objects, ObjectInfo{
			Key:      aws.ToString(o.Key),
			Size:     aws.ToInt64(o.Size),
			Modified: aws.ToTime(o.LastModified),
			ETag:     aws.ToString(o.ETag),
		})
	}
	return page, nil
}

// ListAllPrefix consumes one delimited level of ListObjectsV2 pagination to
// exhaustion: CommonPrefixes holds immediate subdirectories, Objects holds
// immediate files. Callers that need every nested object regardless of
// depth (recursive delete, recursive search) must use ListAllFlat instead.
func (d *Driver) ListAllPrefix(ctx context.Context, prefix string) (ListPage, error) {
	var all ListPage
	token := ""
	for {
		page, err := d.listPage(ctx, prefix, token, true)
		if err != nil {
			return ListPage{}, err
		}
		all.CommonPrefixes = append(all.CommonPrefixes, page.CommonPrefixes...)
		all.Objects = append(all.Objects, page.Objects...)
		if !page.IsTruncated {
			break
		}
		token = page.NextToken
	}
	return all, nil
}

// ListAllFlat consumes ListObjectsV2 pagination to exhaustion with no
// delimiter, so every object under prefix is returned regardless of how
// deeply it's nested. Used by recursive delete and substring search, where
// a delimited listing would hide anything under a CommonPrefix.
func (d *Driver) ListAllFlat(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var all []ObjectInfo
	token := ""
	for {
		page, err := d.listPage(ctx, prefix, token, false)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Objects...)
		if !page.IsTruncated {
			break
		}
		token = page.NextToken
	}
	return all, nil
}

func isMethodRejected(err error) bool {
	var aerr smithy.APIError
	if errors.As(err, &aerr) {
		switch aerr.ErrorCode() {
		case "MethodNotAllowed", "AccessDenied":
			return true
		}
	}
	return false
}

func mapAWSErr(err error) error {
	if err == nil {
		return nil
	}
	var aerr smithy.APIError
	if errors.As(err, &aerr) {
		switch aerr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return gwerr.Wrap(gwerr.NotFound, err, "object not found")
		}
	}
	return gwerr.Wrap(gwerr.UpstreamUnavailable, err, "s3 request failed")
}
