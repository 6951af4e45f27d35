package adapters

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/url"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/internal/util"
)

const (
	defaultS3Region            = "us-east-1"
	defaultS3PageSize          = 1000
	defaultS3UploadConcurrency = 5
)

// S3Options is the "s3" storage section
type S3Options struct {
	Endpoint        string `json:"endpoint,omitempty"` // empty uses the AWS endpoint of Region
	Region          string `json:"region,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"` // empty uses the default credential chain
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	UsePathStyle    bool   `json:"use_path_style,omitempty"` // required by most non-AWS servers
	PartSize        int64  `json:"part_size,omitempty"`
	PageSize        int32  `json:"page_size,omitempty"`
	Concurrency     int    `json:"upload_concurrency,omitempty"` // parts of one object uploaded at once
}

// S3Store implements [webdrive.ObjectStore] on an S3 compatible service
type S3Store struct {
	svc      *s3.Client
	uploader *manager.Uploader
	pageSize int32
}

// NewS3StoreFromJSON builds an S3Store from a storage section
func NewS3StoreFromJSON(ctx context.Context, raw []byte) (webdrive.ObjectStore, error) {
	var opts S3Options
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("invalid s3 storage section: %w", err)
	}
	return NewS3Store(ctx, opts)
}

func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	logger := util.GetLogger("S3Store.New")

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cmp.Or(opts.Region, defaultS3Region)),
	}
	if opts.AccessKeyID != "" {
		logger.Debug().Msg("Using static credentials")
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	svc := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	uploader := manager.NewUploader(svc, func(u *manager.Uploader) {
		if opts.PartSize >= manager.MinUploadPartSize {
			u.PartSize = opts.PartSize
		}
		u.Concurrency = cmp.Or(opts.Concurrency, defaultS3UploadConcurrency)
	})

	logger.Info().
		Str("endpoint", cmp.Or(opts.Endpoint, "aws")).
		Str("region", cfg.Region).
		Bool("pathStyle", opts.UsePathStyle).
		Str("partSize", util.Bytes(uploader.PartSize)).
		Msg("S3 store ready")

	return &S3Store{
		svc:      svc,
		uploader: uploader,
		pageSize: cmp.Or(opts.PageSize, defaultS3PageSize),
	}, nil
}

// translateError maps "no such key" responses onto [webdrive.ErrObjectNotFound]
// and request cancellation onto context.Canceled.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if cerr := (interface{ CanceledError() bool })(nil); errors.As(err, &cerr) && cerr.CanceledError() {
		return context.Canceled
	}
	var aerr smithy.APIError
	if errors.As(err, &aerr) {
		switch aerr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return webdrive.ErrObjectNotFound
		}
	}
	return err
}

func apiErrorCode(err error) string {
	var aerr smithy.APIError
	if errors.As(err, &aerr) {
		return aerr.ErrorCode()
	}
	return ""
}

func (s *S3Store) EnsureBucket(ctx context.Context, bucket string) error {
	logger := util.GetLogger("S3Store.EnsureBucket")

	_, err := s.svc.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	if translateError(err) != webdrive.ErrObjectNotFound && apiErrorCode(err) != "NoSuchBucket" {
		return fmt.Errorf("HeadBucket(%q): %w", bucket, err)
	}

	_, err = s.svc.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	switch apiErrorCode(err) {
	case "", "BucketAlreadyOwnedByYou":
	default:
		return fmt.Errorf("CreateBucket(%q): %w", bucket, err)
	}
	logger.Info().Str("bucket", bucket).Msg("Created bucket")
	return nil
}

func (s *S3Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.Stat(ctx, bucket, key)
	if errors.Is(err, webdrive.ErrObjectNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *S3Store) Stat(ctx context.Context, bucket, key string) (webdrive.ObjectInfo, error) {
	resp, err := s.svc.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return webdrive.ObjectInfo{}, translateError(err)
	}
	return webdrive.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(resp.ContentLength),
		LastModified: aws.ToTime(resp.LastModified),
		ETag:         strings.Trim(aws.ToString(resp.ETag), `"`),
	}, nil
}

func (s *S3Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, webdrive.ObjectInfo, error) {
	resp, err := s.svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, webdrive.ObjectInfo{}, translateError(err)
	}
	return resp.Body, webdrive.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(resp.ContentLength),
		LastModified: aws.ToTime(resp.LastModified),
		ETag:         strings.Trim(aws.ToString(resp.ETag), `"`),
	}, nil
}

func (s *S3Store) GetRange(ctx context.Context, bucket, key string, offset, length int64) (io.ReadCloser, error) {
	if length == 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	rng := fmt.Sprintf("bytes=%d-", max(offset, 0))
	if length > 0 {
		rng += fmt.Sprint(max(offset, 0) + length - 1)
	}
	resp, err := s.svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(rng),
	})
	if apiErrorCode(err) == "InvalidRange" {
		// offset at or past the end
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if err != nil {
		return nil, translateError(err)
	}
	return resp.Body, nil
}

func (s *S3Store) Put(ctx context.Context, bucket, key string, r io.Reader, size int64) (webdrive.ObjectInfo, error) {
	logger := util.GetLogger("S3Store.Put")

	if r == nil {
		r = bytes.NewReader(nil)
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if size >= 0 && size < s.uploader.PartSize {
		input.ContentLength = aws.Int64(size)
	}

	_, err := s.uploader.Upload(ctx, input,
		// Avoid precomputing SHA256 before sending.
		manager.WithUploaderRequestOptions(s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware)),
	)
	if err != nil {
		return webdrive.ObjectInfo{}, translateError(err)
	}
	logger.Trace().Str("key", key).Str("size", util.Bytes(size)).Msg("Uploaded object")

	return s.Stat(ctx, bucket, key)
}

// Copy is a server-side CopyObject. Keys are escaped per segment for the
// x-amz-copy-source header.
func (s *S3Store) Copy(ctx context.Context, bucket, src, dst string) error {
	_, err := s.svc.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		CopySource: aws.String(copySource(bucket, src)),
		Key:        aws.String(dst),
	})
	if err != nil {
		err = translateError(err)
		if errors.Is(err, webdrive.ErrObjectNotFound) {
			return err
		}
		return fmt.Errorf("CopyObject(%q <- %q): %w", dst, src, err)
	}
	return nil
}

func copySource(bucket, key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return bucket + "/" + strings.Join(segs, "/")
}

func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.svc.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return translateError(err)
}

func (s *S3Store) DeleteMany(ctx context.Context, bucket string, keys []string) ([]webdrive.DeleteResult, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
	}
	resp, err := s.svc.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return nil, translateError(err)
	}

	failed := make(map[string]error, len(resp.Errors))
	for _, e := range resp.Errors {
		failed[aws.ToString(e.Key)] = fmt.Errorf("%s: %s", aws.ToString(e.Code), aws.ToString(e.Message))
	}
	results := make([]webdrive.DeleteResult, 0, len(keys))
	for _, k := range keys {
		results = append(results, webdrive.DeleteResult{Key: k, Err: failed[k]})
	}
	return results, nil
}

// List pages through ListObjectsV2. In non-recursive mode the page's
// CommonPrefixes are merged with its Contents in key order.
func (s *S3Store) List(ctx context.Context, bucket, prefix string, recursive bool) iter.Seq2[webdrive.ObjectInfo, error] {
	return func(yield func(webdrive.ObjectInfo, error) bool) {
		input := &s3.ListObjectsV2Input{
			Bucket:  aws.String(bucket),
			Prefix:  aws.String(prefix),
			MaxKeys: aws.Int32(s.pageSize),
		}
		if !recursive {
			input.Delimiter = aws.String("/")
		}

		lastCommon := ""
		pager := s3.NewListObjectsV2Paginator(s.svc, input)
		for pager.HasMorePages() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				yield(webdrive.ObjectInfo{}, translateError(err))
				return
			}

			entries := make([]webdrive.ObjectInfo, 0, len(page.Contents)+len(page.CommonPrefixes))
			common := make(map[string]struct{}, len(page.CommonPrefixes))
			for _, cp := range page.CommonPrefixes {
				// some servers repeat a prefix that straddles two pages
				if p := aws.ToString(cp.Prefix); p != lastCommon {
					entries = append(entries, webdrive.ObjectInfo{Key: p})
					common[p] = struct{}{}
					lastCommon = p
				}
			}
			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				// a directory marker may come back both as an object and as
				// its own common prefix
				if _, ok := common[key]; ok || (!recursive && key == lastCommon) {
					continue
				}
				entries = append(entries, webdrive.ObjectInfo{
					Key:          key,
					Size:         aws.ToInt64(obj.Size),
					LastModified: aws.ToTime(obj.LastModified),
					ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				})
			}
			if len(page.CommonPrefixes) > 0 {
				slices.SortFunc(entries, func(a, b webdrive.ObjectInfo) int {
					return strings.Compare(a.Key, b.Key)
				})
			}

			for _, e := range entries {
				if !yield(e, nil) {
					return
				}
			}
		}
	}
}

var _ webdrive.ObjectStore = (*S3Store)(nil)
