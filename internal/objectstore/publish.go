package objectstore

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/Cloudsky01/relstage/internal/apperr"
	"github.com/Cloudsky01/relstage/internal/logging"
	"github.com/Cloudsky01/relstage/internal/stage"
	"github.com/Cloudsky01/relstage/pkg/models"
)

// Publisher mirrors a staged commit directory into a bucket under
// <prefix>/<channel>/<commit>/.
type Publisher struct {
	Client Bucket
	Config Config
	Logger *slog.Logger
}

// NewPublisher connects to the configured endpoint
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	client, err := NewMinIOClient(cfg)
	if err != nil {
		return nil, apperr.Configuration("object store: %v", err)
	}
	return &Publisher{Client: client, Config: cfg, Logger: logger}, nil
}

func (p *Publisher) Name() string { return "object-store" }

// Publish uploads the directory with the completion marker last. A skipped
// directory whose marker is already in the bucket is not uploaded again.
func (p *Publisher) Publish(ctx context.Context, res *stage.Result) error {
	logger := logging.Ensure(p.Logger).With("component", "objectstore", "bucket", p.Config.Bucket, "commit", res.Commit.Short())

	if err := ensureBucket(ctx, p.Client, p.Config.Bucket, p.Config.Region); err != nil {
		return apperr.Execution("ensure bucket "+p.Config.Bucket, err)
	}

	markerKey := ObjectKey(p.Config.Prefix, res.Channel, res.Commit, stage.CompletionMarker)
	if res.Skipped {
		mirrored, err := objectExists(ctx, p.Client, p.Config.Bucket, markerKey)
		if err != nil {
			return apperr.Execution("stat "+markerKey, err)
		}
		if mirrored {
			logger.Info("already mirrored", "marker", markerKey)
			return nil
		}
	}

	var uploaded int
	var bytes int64
	put := func(file, key string) error {
		info, err := p.Client.FPutObject(ctx, p.Config.Bucket, key, file, minio.PutObjectOptions{ContentType: contentType(file)})
		if err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
		uploaded++
		bytes += info.Size
		return nil
	}

	markerFile := filepath.Join(res.Dir, stage.CompletionMarker)
	err := filepath.WalkDir(res.Dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || file == markerFile {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(res.Dir, file)
		if err != nil {
			return err
		}
		return put(file, ObjectKey(p.Config.Prefix, res.Channel, res.Commit, rel))
	})
	if err == nil {
		if _, statErr := os.Stat(markerFile); statErr == nil {
			err = put(markerFile, markerKey)
		}
	}
	if err != nil {
		return apperr.Execution("mirror "+res.Dir, err)
	}

	logger.Info("mirrored staged build", "objects", uploaded, "bytes", bytes,
		"prefix", ObjectKey(p.Config.Prefix, res.Channel, res.Commit, ""))
	return nil
}

// ObjectKey builds the bucket key for a file relative to a commit directory
func ObjectKey(prefix string, channel models.Channel, commit models.CommitRef, rel string) string {
	parts := []string{}
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, string(channel), commit.String())
	key := path.Join(parts...) + "/"
	if rel != "" {
		key = path.Join(key, filepath.ToSlash(rel))
	}
	return key
}

func contentType(file string) string {
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return "application/octet-stream"
}
