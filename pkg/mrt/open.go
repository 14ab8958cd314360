// Package mrt opens MRT RIB dumps from their archive locators and decodes them
// into route records.
package mrt

import (
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"

	"IXScan/internal/config"
	"IXScan/internal/model"
)

// responseHeaderTimeout bounds the wait for an archive to start answering. The
// body itself has no deadline since full RIB dumps take minutes to download.
const responseHeaderTimeout = time.Minute

// Opener resolves data source locators to decoded record streams.
// It supports http(s)://, s3://bucket/key, file:// and plain paths.
type Opener struct {
	http  *http.Client
	s3cfg config.S3Config

	s3Once   sync.Once
	s3Client *s3.Client
	s3Err    error
}

func NewOpener(s3cfg config.S3Config) *Opener {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = responseHeaderTimeout
	return &Opener{http: &http.Client{Transport: transport}, s3cfg: s3cfg}
}

// Open fetches the source, wraps it in the decompressor matching its suffix and
// returns a Reader over it. Closing the stream closes the decompressor and the
// underlying body.
func (o *Opener) Open(ctx context.Context, src model.DataSource) (model.RecordStream, error) {
	body, err := o.fetch(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	r, zc, err := decompress(body, src.URL)
	if err != nil {
		body.Close()
		return nil, err
	}
	cl := closers{body}
	if zc != nil {
		cl = closers{zc, body}
	}
	return NewReader(r, src.Collector, cl), nil
}

// closers closes every element in order and joins the errors.
type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for _, cl := range c {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Opener) fetch(ctx context.Context, locator string) (io.ReadCloser, error) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" {
		return os.Open(locator)
	}
	switch u.Scheme {
	case "http", "https":
		return o.fetchHTTP(ctx, locator)
	case "s3":
		return o.fetchS3(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
	case "file":
		return os.Open(u.Path)
	default:
		return nil, fmt.Errorf("unsupported locator scheme %q", u.Scheme)
	}
}

func (o *Opener) fetchHTTP(ctx context.Context, locator string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

func (o *Opener) fetchS3(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if bucket == "" || key == "" {
		return nil, errors.New("s3 locator needs a bucket and a key")
	}
	client, err := o.s3(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

// s3 creates the client on first use so runs without s3:// sources never load AWS settings.
func (o *Opener) s3(ctx context.Context) (*s3.Client, error) {
	o.s3Once.Do(func() {
		var opts []func(*awsconfig.LoadOptions) error
		if o.s3cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(o.s3cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			o.s3Err = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		o.s3Client = s3.NewFromConfig(awsCfg, func(opt *s3.Options) {
			if o.s3cfg.Endpoint != "" {
				opt.BaseEndpoint = aws.String(o.s3cfg.Endpoint)
			}
			opt.UsePathStyle = o.s3cfg.UsePathStyle
		})
	})
	return o.s3Client, o.s3Err
}

// decompress wraps r by file suffix. The returned closer, nil when the
// decompressor holds nothing to release, must be closed before r.
func decompress(r io.Reader, locator string) (io.Reader, io.Closer, error) {
	name := locator
	if u, err := url.Parse(locator); err == nil && u.Path != "" {
		name = u.Path
	}
	switch {
	case strings.HasSuffix(name, ".gz"):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return zr, zr, nil
	case strings.HasSuffix(name, ".bz2"):
		return bzip2.NewReader(r), nil, nil
	default:
		return r, nil, nil
	}
}
