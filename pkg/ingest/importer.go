package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/bukget/pkg/async"
	"github.com/platinummonkey/bukget/pkg/catalog"
)

// Defaults for an Importer
const (
	DefaultWorkers = 4
	DefaultTimeout = 30 * time.Second
	DefaultParser  = "import"
	DefaultType    = "full"
)

// Invalidator drops cached catalog reads after a write
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Mirror stores copies of plugin files
type Mirror interface {
	Has(ctx context.Context, server, slug string, v catalog.Version) (bool, error)
	Upload(ctx context.Context, server, slug string, v catalog.Version, body io.Reader) error
}

// Importer writes catalog files into a store and records a generation for each
// import
type Importer struct {
	writer      catalog.Writer
	invalidator Invalidator
	mirror      Mirror
	client      *http.Client
	workers     int
	timeout     time.Duration
	now         func() time.Time
	log         *logrus.Logger
}

// Option configures an Importer
type Option func(*Importer)

// WithInvalidator clears the cache after every import
func WithInvalidator(inv Invalidator) Option {
	return func(im *Importer) { im.invalidator = inv }
}

// WithMirror copies the newest file of every imported plugin into mirror,
// downloading with client (http.DefaultClient when nil)
func WithMirror(mirror Mirror, client *http.Client) Option {
	return func(im *Importer) {
		im.mirror = mirror
		if client != nil {
			im.client = client
		}
	}
}

// WithWorkers sets how many plugins are written concurrently
func WithWorkers(n int) Option {
	return func(im *Importer) { im.workers = n }
}

// WithTimeout bounds each plugin write and mirror upload
func WithTimeout(d time.Duration) Option {
	return func(im *Importer) { im.timeout = d }
}

// WithLogger sets the logger
func WithLogger(log *logrus.Logger) Option {
	return func(im *Importer) {
		if log != nil {
			im.log = log
		}
	}
}

// WithClock overrides the time source used for generations
func WithClock(now func() time.Time) Option {
	return func(im *Importer) { im.now = now }
}

// NewImporter creates an importer writing to w
func NewImporter(w catalog.Writer, opts ...Option) *Importer {
	im := &Importer{
		writer:  w,
		client:  http.DefaultClient,
		workers: DefaultWorkers,
		timeout: DefaultTimeout,
		now:     time.Now,
		log:     logrus.New(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ImportFile loads and imports one catalog file
func (im *Importer) ImportFile(ctx context.Context, path string) (*catalog.Generation, error) {
	file, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	im.log.WithField("path", path).Debugf("Loaded %d plugins", len(file.Plugins))
	return im.Import(ctx, file)
}

// Import normalizes and stores every plugin of file, then records the run as a
// generation. Nothing is written when a plugin fails validation.
func (im *Importer) Import(ctx context.Context, file *File) (*catalog.Generation, error) {
	start := im.now()

	plugins := make([]catalog.Plugin, len(file.Plugins))
	copy(plugins, file.Plugins)
	for i := range plugins {
		plugins[i].Versions = append([]catalog.Version(nil), plugins[i].Versions...)
		if err := Normalize(&plugins[i]); err != nil {
			return nil, fmt.Errorf("plugin %d: %w", i, err)
		}
	}

	errs := async.Batch(ctx, plugins, im.workers, "upsert plugin", im.timeout,
		func(ctx context.Context, p catalog.Plugin) error {
			if err := im.writer.UpsertPlugin(ctx, &p); err != nil {
				return fmt.Errorf("%s/%s: %w", p.Server, p.Slug, err)
			}
			return nil
		})
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to store %d of %d plugins: %w", len(errs), len(plugins), errors.Join(errs...))
	}

	if im.mirror != nil {
		im.mirrorLatest(ctx, plugins)
	}

	gen := &catalog.Generation{
		ID:        uuid.NewString(),
		Timestamp: start.Unix(),
		Parser:    orDefault(file.Parser, DefaultParser),
		Type:      orDefault(file.Type, DefaultType),
		Duration:  im.now().Sub(start).Seconds(),
		Changes:   file.Changes,
	}
	if gen.Changes == nil {
		gen.Changes = latestChanges(plugins)
	}
	if err := im.writer.AddGeneration(ctx, gen); err != nil {
		return nil, fmt.Errorf("failed to record generation: %w", err)
	}

	if im.invalidator != nil {
		if err := im.invalidator.Invalidate(ctx); err != nil {
			im.log.WithError(err).Warn("Failed to invalidate catalog cache")
		}
	}

	im.log.WithFields(logrus.Fields{
		"generation": gen.ID,
		"plugins":    len(plugins),
		"duration":   gen.Duration,
	}).Info("Catalog imported")
	return gen, nil
}

// mirrorLatest copies the newest file of each plugin that is not mirrored yet.
// Failures are logged; downloads fall back to the origin.
func (im *Importer) mirrorLatest(ctx context.Context, plugins []catalog.Plugin) {
	errs := async.Batch(ctx, plugins, im.workers, "mirror plugin", im.timeout,
		func(ctx context.Context, p catalog.Plugin) error {
			v, ok := p.Latest()
			if !ok || v.Download == "" {
				return nil
			}
			has, err := im.mirror.Has(ctx, p.Server, p.Slug, v)
			if err != nil || has {
				return err
			}
			return im.copyToMirror(ctx, p, v)
		})
	for _, err := range errs {
		im.log.WithError(err).Warn("Failed to mirror plugin file")
	}
}

func (im *Importer) copyToMirror(ctx context.Context, p catalog.Plugin, v catalog.Version) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.Download, nil)
	if err != nil {
		return fmt.Errorf("%s/%s %s: %w", p.Server, p.Slug, v.Version, err)
	}
	resp, err := im.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s/%s %s: %w", p.Server, p.Slug, v.Version, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s/%s %s: download returned %s", p.Server, p.Slug, v.Version, resp.Status)
	}
	return im.mirror.Upload(ctx, p.Server, p.Slug, v, resp.Body)
}

// latestChanges lists the newest version of each plugin
func latestChanges(plugins []catalog.Plugin) []catalog.Change {
	changes := make([]catalog.Change, 0, len(plugins))
	for i := range plugins {
		if v, ok := plugins[i].Latest(); ok {
			changes = append(changes, catalog.Change{Plugin: plugins[i].Slug, Version: v.Version})
		}
	}
	return changes
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
