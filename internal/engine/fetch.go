package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

const fetchChunkBytes = 32 * 1024

// fetchFile downloads url into dest, reporting byte progress after every
// chunk. The file is written to a .partial sibling and renamed on success so
// an aborted download never looks materialized. Returns the byte count.
func fetchFile(ctx context.Context, client *http.Client, url, dest string, onProgress func(loaded, total int64)) (int64, error) {
	if url == "" {
		return 0, fmt.Errorf("no source url")
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	total := resp.ContentLength // -1 when unknown

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	partial := dest + ".partial"
	f, err := os.Create(partial)
	if err != nil {
		return 0, err
	}
	var loaded int64
	buf := make([]byte, fetchChunkBytes)
	for {
		if err := ctx.Err(); err != nil {
			f.Close()
			os.Remove(partial)
			return loaded, err
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				os.Remove(partial)
				return loaded, werr
			}
			loaded += int64(n)
			if onProgress != nil {
				onProgress(loaded, max64(total, 0))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			f.Close()
			os.Remove(partial)
			return loaded, rerr
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(partial)
		return loaded, err
	}
	if err := os.Rename(partial, dest); err != nil {
		os.Remove(partial)
		return loaded, err
	}
	return loaded, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
