// Package publish fans a reconciled batch out to the configured targets:
// the object store, the Redis cache, a local file and the SQL archive.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/export"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/store"
)

var (
	ErrInvalidData = errors.New("publish: missing data")
	ErrRedisFailed = errors.New("publish: redis failed")
	ErrS3Failed    = errors.New("publish: s3 failed")
	ErrFileFailed  = errors.New("publish: file failed")
)

// Publisher holds the enabled targets. A nil target is skipped.
type Publisher struct {
	Redis   store.BatchStore
	Object  store.BatchStore
	Archive market.Persistence
	// FileFormat is used when a request names an output file without a
	// recognised extension.
	FileFormat export.Format
}

// Request describes one publish.
type Request struct {
	Label      string
	Batch      options.Batch
	RedisKey   string
	S3Key      string
	OutputFile string
	Format     export.Format
	// Provider and Side identify the chain for the archive.
	Provider string
	Side     options.ContractSide
}

// Publish writes the batch to the object store, then Redis, then the output
// file, then the archive. The first failing target stops the publish and is
// reported through its sentinel error. An archive failure is logged only.
func (p *Publisher) Publish(ctx context.Context, req Request) (options.Kind, error) {
	logger := logx.WithContext(ctx)
	if len(req.Batch) == 0 {
		logger.Infof("publish: %s missing data", req.Label)
		return options.KindNotRun, ErrInvalidData
	}
	start := time.Now()

	if p.Object != nil && req.S3Key != "" {
		if err := p.Object.Save(ctx, req.S3Key, req.Batch); err != nil {
			logger.Errorf("publish: %s s3 key=%s err=%v", req.Label, req.S3Key, err)
			return options.KindError, fmt.Errorf("%w: %w", ErrS3Failed, err)
		}
	}
	if p.Redis != nil && req.RedisKey != "" {
		if err := p.Redis.Save(ctx, req.RedisKey, req.Batch); err != nil {
			logger.Errorf("publish: %s redis key=%s err=%v", req.Label, req.RedisKey, err)
			return options.KindError, fmt.Errorf("%w: %w", ErrRedisFailed, err)
		}
	}
	if req.OutputFile != "" {
		format := req.Format
		if format == "" {
			format = export.FormatFromPath(req.OutputFile, p.fileFormat())
		}
		if err := export.Write(req.OutputFile, req.Batch, format); err != nil {
			logger.Errorf("publish: %s file=%s err=%v", req.Label, req.OutputFile, err)
			return options.KindError, fmt.Errorf("%w: %w", ErrFileFailed, err)
		}
	}
	if p.Archive != nil && req.Provider != "" && req.Side != "" {
		if err := p.Archive.RecordChain(ctx, req.Provider, req.Side, req.Batch); err != nil {
			logger.Errorf("publish: %s archive err=%v", req.Label, err)
		}
	}

	logger.Infof("publish: %s rows=%d redis=%s s3=%s file=%s took=%s",
		req.Label, len(req.Batch), req.RedisKey, req.S3Key, req.OutputFile, time.Since(start))
	return options.KindSuccess, nil
}

func (p *Publisher) fileFormat() export.Format {
	if p.FileFormat == "" {
		return export.FormatCSV
	}
	return p.FileFormat
}
