package store

import (
	"context"
	"io"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vango-dev/datatable/internal/config"
	"github.com/vango-dev/datatable/internal/errors"
	"github.com/vango-dev/datatable/pkg/pref"
)

// Opened is a configured backend plus whatever must be released with it.
// Raw keeps the backend's optional capabilities (such as synchronous reads)
// visible to pref.JSON.
type Opened struct {
	Raw    pref.RawStorage
	closer io.Closer
}

// Close releases connections held by the backend.
func (o *Opened) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

type closeFunc func()

func (f closeFunc) Close() error {
	f()
	return nil
}

// Open builds the backend selected by cfg. The storage prefix is applied to
// every key.
func Open(ctx context.Context, cfg config.StorageConfig) (*Opened, error) {
	var (
		raw    pref.RawStorage
		closer io.Closer
	)

	switch cfg.Backend {
	case config.BackendMemory, "":
		m := NewMemory()
		raw, closer = m, m

	case config.BackendFile:
		f, err := NewFile(cfg.Dir)
		if err != nil {
			return nil, errors.New("DT031").WithSubject(cfg.Dir).Wrap(err)
		}
		raw = f

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, errors.New("DT031").WithSubject("storage.dsn").Wrap(err)
		}
		pg := NewPostgres(pool, WithTable(cfg.Table))
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, errors.New("DT011").WithSubject(cfg.Table).Wrap(err)
		}
		raw, closer = pg, closeFunc(pool.Close)

	case config.BackendS3:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, errors.New("DT031").WithSubject("storage.s3").Wrap(err)
		}
		raw = NewS3(s3.NewFromConfig(awsCfg), cfg.Bucket, "")

	case config.BackendHTTP:
		raw = NewHTTP(cfg.URL, &http.Client{Timeout: 10 * time.Second})

	default:
		return nil, errors.New("DT031").WithSubject(string(cfg.Backend))
	}

	return &Opened{Raw: WithPrefix(raw, cfg.Prefix), closer: closer}, nil
}
