package artwork

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

var validKey = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// FileCache stores artwork as <dir>/<key>.jpg. Entries are never mutated:
// when writers race on a key the first committed file wins and every writer
// receives the same URI.
type FileCache struct {
	dir       string
	urlPrefix string
	fetcher   *Fetcher
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics

	group singleflight.Group
}

func NewFileCache(dir, urlPrefix string, fetcher *Fetcher, timeout time.Duration, logger *slog.Logger, m *metrics) *FileCache {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if m == nil {
		m = newMetrics(nil)
	}
	return &FileCache{
		dir:       dir,
		urlPrefix: urlPrefix,
		fetcher:   fetcher,
		timeout:   timeout,
		logger:    logger,
		metrics:   m,
	}
}

// Dir returns the directory the cache writes to.
func (c *FileCache) Dir() string { return c.dir }

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key+".jpg")
}

func (c *FileCache) lockPath(key string) string {
	return filepath.Join(c.dir, ".locks", key+".lock")
}

// URI is the location an entry is served from.
func (c *FileCache) URI(key string) string {
	return path.Join("/", c.urlPrefix, key+".jpg")
}

func (c *FileCache) Has(key string) bool {
	if !validKey.MatchString(key) {
		return false
	}
	info, err := os.Stat(c.path(key))
	return err == nil && info.Mode().IsRegular()
}

func (c *FileCache) Get(key string) (string, bool) {
	if !c.Has(key) {
		return "", false
	}
	return c.URI(key), true
}

// Put downloads sourceURI and stores it under key unless an entry already
// exists. The download is not cancelled when ctx is, so a caller giving up
// does not abort a store that other callers are waiting on.
func (c *FileCache) Put(ctx context.Context, key, sourceURI string) (string, error) {
	if !validKey.MatchString(key) {
		return "", errors.Errorf("invalid cache key %q", key)
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.store(storeCtx, key, sourceURI)
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

func (c *FileCache) store(ctx context.Context, key, sourceURI string) (string, error) {
	if c.Has(key) {
		return c.URI(key), nil
	}

	if err := os.MkdirAll(filepath.Dir(c.lockPath(key)), 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create lock directory")
	}

	lock := flock.New(c.lockPath(key))
	locked, err := lock.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		return "", errors.Wrapf(err, "failed to lock %s", key)
	}
	if !locked {
		return "", errors.Errorf("timed out locking %s", key)
	}
	defer func() { _ = lock.Unlock() }()

	// Another process may have committed while we waited.
	if c.Has(key) {
		return c.URI(key), nil
	}

	data, err := c.fetcher.Fetch(ctx, sourceURI)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(c.dir, key+"-*.tmp")
	if err != nil {
		return "", errors.Wrap(err, "failed to create temp file")
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tempPath)
		return "", errors.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Sync(); err != nil {
		c.logger.Warn("error syncing temp file", "err", err, "path", tempPath)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return "", errors.Wrap(err, "failed to close temp file")
	}

	if err := c.commitTempFile(tempPath, c.path(key)); err != nil {
		return "", err
	}

	return c.URI(key), nil
}

// commitTempFile renames tempPath to destPath only if dest doesn't exist yet.
func (c *FileCache) commitTempFile(tempPath, destPath string) error {
	_, err := os.Stat(destPath)
	switch {
	case err == nil:
		_ = os.Remove(tempPath)
		c.logger.Debug("discarded duplicate artwork", "path", destPath)
		return nil
	case !os.IsNotExist(err):
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "error stating dest file")
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "error renaming temp to dest")
	}

	c.metrics.stores.Inc()
	c.logger.Debug("saved artwork", "path", destPath)
	return nil
}
