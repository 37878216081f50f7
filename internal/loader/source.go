package loader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"
)

// Source produces transactions from one place.
type Source interface {
	Name() string
	Load(ctx context.Context) (Result, error)
}

// FileSource reads a local CSV file.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string {
	return s.Path
}

func (s FileSource) Load(ctx context.Context) (Result, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return Result{}, fmt.Errorf("open file %q: %w", s.Path, err)
	}
	defer f.Close()
	return ParseCSV(f, s.Path)
}

// SourceFor maps a reference to a source: gs:// URIs go to Cloud Storage
// through client (which may be nil), everything else is a local path.
func SourceFor(ref string, client *storage.Client) Source {
	if strings.HasPrefix(ref, "gs://") {
		return GCSSource{URI: ref, Client: client}
	}
	return FileSource{Path: ref}
}

// LoadAll loads every source concurrently and concatenates the results in
// argument order. The first failing source cancels the rest.
func LoadAll(ctx context.Context, sources []Source) (Result, error) {
	results := make([]Result, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			r, err := src.Load(gctx)
			if err != nil {
				return fmt.Errorf("LoadAll: %s: %w", src.Name(), err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var merged Result
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Source)
		merged.Transactions = append(merged.Transactions, r.Transactions...)
		merged.Rejected = append(merged.Rejected, r.Rejected...)
	}
	merged.Source = strings.Join(names, ", ")
	return merged, nil
}
