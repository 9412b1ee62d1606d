// resolver.go: idempotent create-or-get of destination folder hierarchies
package repository

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dkovacevic/dossier-migrate/internal/errors"
	"github.com/dkovacevic/dossier-migrate/internal/logging"
	"github.com/patrickmn/go-cache"
)

// lockStripes is the size of the striped mutex set guarding check-then-create.
// Striping by path keeps concurrent creation of different paths parallel while
// serializing concurrent creation of the same path.
const lockStripes = 64

// Resolver resolves a (root, relative path) destination reference to a folder
// node id, creating missing path segments on the way. Safe for concurrent use;
// re-running with the same arguments always returns the same id and never
// creates duplicate folders.
type Resolver struct {
	writer Writer
	locks  [lockStripes]sync.Mutex
	cache  *cache.Cache // "rootID|path" -> folder node id
	logger *slog.Logger
}

// NewResolver creates a Resolver caching resolved ids for cacheTTL.
func NewResolver(writer Writer, cacheTTL time.Duration) *Resolver {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}
	return &Resolver{
		writer: writer,
		cache:  cache.New(cacheTTL, 2*cacheTTL),
		logger: logging.ForService("folder-resolver"),
	}
}

// Resolve walks relPath segment by segment under rootID, creating or fetching
// each folder, and returns the node id of the deepest segment. An empty
// relPath resolves to rootID itself.
func (r *Resolver) Resolve(ctx context.Context, rootID, relPath string) (string, error) {
	relPath = strings.Trim(relPath, "/")
	if relPath == "" {
		return rootID, nil
	}

	parentID := rootID
	walked := ""
	for _, segment := range strings.Split(relPath, "/") {
		if segment == "" {
			continue
		}
		if walked == "" {
			walked = segment
		} else {
			walked = walked + "/" + segment
		}

		id, err := r.resolveSegment(ctx, rootID, walked, parentID, segment)
		if err != nil {
			return "", errors.New(err).
				Component("folder-resolver").
				Category(errors.CategoryPreparation).
				Context("root_id", rootID).
				Context("path", walked).
				Build()
		}
		parentID = id
	}
	return parentID, nil
}

// resolveSegment creates or fetches one path segment under parentID, guarded
// by the stripe lock of its full destination path.
func (r *Resolver) resolveSegment(ctx context.Context, rootID, fullPath, parentID, name string) (string, error) {
	key := rootID + "|" + fullPath

	if id, found := r.cache.Get(key); found {
		return id.(string), nil
	}

	stripe := &r.locks[stripeFor(key)]
	stripe.Lock()
	defer stripe.Unlock()

	// Re-check under the lock: a concurrent caller may have resolved this
	// path while we waited.
	if id, found := r.cache.Get(key); found {
		return id.(string), nil
	}

	id, err := r.writer.CreateFolder(ctx, parentID, name, nil)
	if err != nil {
		return "", err
	}

	r.cache.SetDefault(key, id)
	r.logger.Debug("resolved destination folder", "path", fullPath, "node_id", id)
	return id, nil
}

func stripeFor(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % lockStripes
}
