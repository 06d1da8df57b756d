package downloader

import (
	"context"

	"EchoFM/core/artifact"
)

// Fetcher adapts the yt-dlp downloader to the artifact cache manager.
type Fetcher struct {
	dl *YtDlp
}

// NewFetcher creates the cache-facing fetch collaborator.
func NewFetcher(dl *YtDlp) *Fetcher {
	return &Fetcher{dl: dl}
}

// Fetch downloads the best audio for id to destPath.
func (f *Fetcher) Fetch(ctx context.Context, id, destPath string) (*artifact.FetchResult, error) {
	res, err := f.dl.Download(ctx, id, destPath)
	if err != nil {
		return nil, err
	}
	return &artifact.FetchResult{
		Filename:    res.Filename,
		ContentType: res.ContentType,
	}, nil
}
