package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FetchObject downloads an object. A nil client is created from Application
// Default Credentials and closed afterwards.
func FetchObject(ctx context.Context, client *storage.Client, uri string) ([]byte, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	if client == nil {
		client, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("FetchObject: create storage client: %w", err)
		}
		defer client.Close()
	}

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchObject: open object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("FetchObject: read object: %w", err)
	}
	return data, nil
}

// GCSSource reads a spending CSV stored in Cloud Storage.
type GCSSource struct {
	URI    string
	Client *storage.Client // optional
}

func (s GCSSource) Name() string {
	return s.URI
}

func (s GCSSource) Load(ctx context.Context) (Result, error) {
	data, err := FetchObject(ctx, s.Client, s.URI)
	if err != nil {
		return Result{}, err
	}
	return ParseCSV(bytes.NewReader(data), s.URI)
}
