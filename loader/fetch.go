package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Fetcher opens the remote object named by a URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri *url.URL) (io.ReadCloser, error)
}

// HTTPFetcher downloads http and https URIs.
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch issues a GET and returns the body of a 200 response.
func (f HTTPFetcher) Fetch(ctx context.Context, uri *url.URL) (io.ReadCloser, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", uri.Redacted(), err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: unexpected status %s", uri.Redacted(), resp.Status)
	}
	return resp.Body, nil
}

// GCSFetcher reads gs://bucket/object URIs.
type GCSFetcher struct {
	// CredentialsFile is an optional service account key; application
	// default credentials are used when empty.
	CredentialsFile string
}

// gcsObject closes the storage client along with the object reader.
type gcsObject struct {
	*gcs.Reader
	client *gcs.Client
}

func (o gcsObject) Close() error {
	err := o.Reader.Close()
	if cerr := o.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// Fetch opens a reader on the object.
func (f GCSFetcher) Fetch(ctx context.Context, uri *url.URL) (io.ReadCloser, error) {
	var opts []option.ClientOption
	if f.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(f.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	object := uri.Path
	if len(object) > 0 && object[0] == '/' {
		object = object[1:]
	}
	r, err := client.Bucket(uri.Host).Object(object).NewReader(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	return gcsObject{Reader: r, client: client}, nil
}

// FileFetcher opens local paths and file URIs.
type FileFetcher struct{}

// Fetch opens the file.
func (FileFetcher) Fetch(_ context.Context, uri *url.URL) (io.ReadCloser, error) {
	return os.Open(uri.Path)
}
