package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"easel/internal/blobstore"
	"easel/internal/ledger"
	"easel/internal/logging"
	"easel/internal/services"
)

const stageIngest = "ingest"

// Manifest is one dropped post: a JSON file in the ingest directory naming
// the source post and, optionally, a sibling image file.
type Manifest struct {
	Shortcode string `json:"shortcode"`
	Caption   string `json:"caption"`
	Image     string `json:"image,omitempty"`
}

// Summary aggregates one ingest sweep.
type Summary struct {
	Registered int
	Skipped    int
	Failed     int
}

// Ingestor registers dropped posts into the ledger and stores their source
// images in the blob store.
type Ingestor struct {
	store  *ledger.Store
	blobs  *blobstore.Store
	dir    string
	logger *slog.Logger
}

func New(store *ledger.Store, blobs *blobstore.Store, dir string, logger *slog.Logger) (*Ingestor, error) {
	if store == nil || blobs == nil {
		return nil, services.Wrap(services.ErrConfiguration, stageIngest, "new ingestor", "ledger store and blob store are required", nil)
	}
	if strings.TrimSpace(dir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageIngest, "new ingestor", "ingest directory is not configured", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ingestor{store: store, blobs: blobs, dir: dir, logger: logging.NewComponentLogger(logger, "ingest")}, nil
}

// Sweep processes every manifest in the ingest directory. Handled drops are
// moved to a processed subdirectory so repeated sweeps stay cheap; a broken
// manifest is counted and left in place for inspection.
func (i *Ingestor) Sweep(ctx context.Context) (*Summary, error) {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Summary{}, nil
		}
		return nil, services.Wrap(services.ErrTransient, stageIngest, "sweep", "read ingest directory", err)
	}

	summary := &Summary{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, services.Wrap(services.ErrInterrupted, stageIngest, "sweep", "sweep interrupted", err)
		}
		manifestPath := filepath.Join(i.dir, entry.Name())
		registered, err := i.processManifest(ctx, manifestPath)
		switch {
		case err != nil:
			summary.Failed++
			i.logger.Error("manifest rejected",
				"manifest", entry.Name(),
				logging.Error(err))
		case registered:
			summary.Registered++
		default:
			summary.Skipped++
		}
	}
	i.logger.Info("ingest sweep finished",
		"registered", summary.Registered,
		"skipped", summary.Skipped,
		"failed", summary.Failed)
	return summary, nil
}

// Register adds a single post directly, outside the drop-directory flow.
// It is idempotent: re-registering an existing shortcode only fills in a
// missing source image.
func (i *Ingestor) Register(ctx context.Context, shortcode, caption, imagePath string) (*ledger.SourcePost, error) {
	shortcode = strings.TrimSpace(shortcode)
	if shortcode == "" {
		return nil, services.Wrap(services.ErrInvalidRequest, stageIngest, "register", "shortcode is empty", nil)
	}
	post, err := i.store.RegisterPost(ctx, shortcode, caption)
	if err != nil {
		return nil, err
	}
	if imagePath == "" || post.OriginalBlob != "" {
		return post, nil
	}
	ref, err := i.storeImage(imagePath)
	if err != nil {
		return nil, err
	}
	if err := i.store.SetOriginalBlob(ctx, shortcode, string(ref)); err != nil {
		return nil, err
	}
	post.OriginalBlob = string(ref)
	return post, nil
}

func (i *Ingestor) processManifest(ctx context.Context, manifestPath string) (bool, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, stageIngest, "process manifest", "read manifest", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return false, services.Wrap(services.ErrInvalidRequest, stageIngest, "process manifest", "decode manifest", err)
	}

	var imagePath string
	if manifest.Image != "" {
		imagePath = filepath.Join(i.dir, filepath.Base(manifest.Image))
	}
	before, err := i.store.GetPost(ctx, strings.TrimSpace(manifest.Shortcode))
	known := err == nil

	post, err := i.Register(ctx, manifest.Shortcode, manifest.Caption, imagePath)
	if err != nil {
		return false, err
	}
	if err := i.archive(manifestPath, imagePath); err != nil {
		return false, err
	}
	registered := !known || (before != nil && before.OriginalBlob == "" && post.OriginalBlob != "")
	return registered, nil
}

func (i *Ingestor) storeImage(path string) (blobstore.Ref, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrInvalidRequest, stageIngest, "store image", "read source image", err)
	}
	return i.blobs.Put(data, http.DetectContentType(data))
}

func (i *Ingestor) archive(manifestPath, imagePath string) error {
	processed := filepath.Join(i.dir, "processed")
	if err := os.MkdirAll(processed, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, stageIngest, "archive", "create processed directory", err)
	}
	for _, path := range []string{manifestPath, imagePath} {
		if path == "" {
			continue
		}
		target := filepath.Join(processed, filepath.Base(path))
		if err := os.Rename(path, target); err != nil && !os.IsNotExist(err) {
			return services.Wrap(services.ErrTransient, stageIngest, "archive", "move processed drop", err)
		}
	}
	return nil
}
