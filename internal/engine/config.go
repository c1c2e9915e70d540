package engine

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"modelhost/internal/catalog"
	"modelhost/internal/common/fsutil"
	"modelhost/internal/structstore"
)

// Config carries the construction parameters shared by all engine builds.
type Config struct {
	// CacheDir is where weight files are materialized.
	CacheDir string
	// Catalog resolves model ids to source URLs and sizes.
	Catalog *catalog.Catalog
	// Partitions is the structured tier the engine records materialized
	// weights into. Optional.
	Partitions *structstore.Store
	// CtxSize and Threads tune the llama runtime.
	CtxSize int
	Threads int
	// HTTPClient used for weight fetches; nil means http.DefaultClient.
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// weightPath maps a model id to its on-disk weight file. Path separators in
// ids are flattened so an id can never escape the cache dir.
func (c Config) weightPath(modelID string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(modelID)
	return filepath.Join(c.CacheDir, name+".gguf")
}

// queryCacheMembership is the engine-native probe: the weights are cached
// iff the (fully renamed) weight file exists.
func (c Config) queryCacheMembership(ctx context.Context, modelID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return fsutil.PathExists(c.weightPath(modelID)), nil
}
