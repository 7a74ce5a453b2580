package ingest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bukget/pkg/catalog"
)

// memoryWriter records writes
type memoryWriter struct {
	mu          sync.Mutex
	plugins     map[string]catalog.Plugin
	generations []catalog.Generation
	failSlug    string
	genErr      error
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{plugins: make(map[string]catalog.Plugin)}
}

func (m *memoryWriter) UpsertPlugin(ctx context.Context, p *catalog.Plugin) error {
	if p.Slug == m.failSlug {
		return errors.New("constraint violation")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plugins[p.Server+"/"+p.Slug] = *p
	return nil
}

func (m *memoryWriter) AddGeneration(ctx context.Context, gen *catalog.Generation) error {
	if m.genErr != nil {
		return m.genErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations = append(m.generations, *gen)
	return nil
}

func (m *memoryWriter) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.plugins))
	for k := range m.plugins {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

// memoryMirror stores uploads by key
type memoryMirror struct {
	mu      sync.Mutex
	objects map[string]string
}

func newMemoryMirror() *memoryMirror {
	return &memoryMirror{objects: make(map[string]string)}
}

func (m *memoryMirror) key(server, slug string, v catalog.Version) string {
	return server + "/" + slug + "/" + v.Version
}

func (m *memoryMirror) Has(ctx context.Context, server, slug string, v catalog.Version) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[m.key(server, slug, v)]
	return ok, nil
}

func (m *memoryMirror) Upload(ctx context.Context, server, slug string, v catalog.Version, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[m.key(server, slug, v)] = string(data)
	return nil
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func testFile() *File {
	return &File{
		Parser: "bukkit",
		Plugins: []catalog.Plugin{
			{
				Slug: "WorldEdit", Authors: []string{"sk89q"},
				Versions: []catalog.Version{
					{Version: "5.4", Date: 100, Download: "http://dl/we-5.4.jar"},
					{Version: "5.5", Date: 200, Download: "http://dl/we-5.5.jar"},
				},
			},
			{Slug: "essentials", Server: "bukkit", Versions: []catalog.Version{{Version: "2.9", Date: 300}}},
			{Slug: "worldedit", Server: "spout"},
		},
	}
}

func TestNewImporterDefaults(t *testing.T) {
	im := NewImporter(newMemoryWriter())

	assert.Equal(t, DefaultWorkers, im.workers)
	assert.Equal(t, DefaultTimeout, im.timeout)
	assert.Equal(t, http.DefaultClient, im.client)
	assert.NotNil(t, im.log)
	assert.Nil(t, im.mirror)
	assert.Nil(t, im.invalidator)
}

func TestImport(t *testing.T) {
	w := newMemoryWriter()
	inv := &countingInvalidator{}
	im := NewImporter(w, WithInvalidator(inv), WithClock(fixedClock()), WithWorkers(2))

	file := testFile()
	gen, err := im.Import(context.Background(), file)
	require.NoError(t, err)

	assert.Equal(t, []string{"bukkit/essentials", "bukkit/worldedit", "spout/worldedit"}, w.keys())

	we := w.plugins["bukkit/worldedit"]
	assert.Equal(t, "worldedit", we.PluginName)
	require.Len(t, we.Versions, 2)
	assert.Equal(t, "5.5", we.Versions[0].Version)
	assert.Equal(t, "worldedit", we.Versions[0].Slug)

	// the caller's file is left untouched
	assert.Equal(t, "WorldEdit", file.Plugins[0].Slug)
	assert.Equal(t, "5.4", file.Plugins[0].Versions[0].Version)

	require.NotNil(t, gen)
	assert.NotEmpty(t, gen.ID)
	assert.Equal(t, time.Date(2024, 3, 10, 12, 0, 1, 0, time.UTC).Unix(), gen.Timestamp)
	assert.Equal(t, "bukkit", gen.Parser)
	assert.Equal(t, DefaultType, gen.Type)
	assert.Equal(t, 1.0, gen.Duration)
	assert.Equal(t, []catalog.Change{
		{Plugin: "worldedit", Version: "5.5"},
		{Plugin: "essentials", Version: "2.9"},
	}, gen.Changes)

	require.Len(t, w.generations, 1)
	assert.Equal(t, gen.ID, w.generations[0].ID)
	assert.Equal(t, 1, inv.calls)
}

func TestImportKeepsExplicitChanges(t *testing.T) {
	w := newMemoryWriter()
	im := NewImporter(w)

	file := testFile()
	file.Type = "speedy"
	file.Changes = []catalog.Change{{Plugin: "essentials", Version: "2.9"}}

	gen, err := im.Import(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "speedy", gen.Type)
	assert.Equal(t, file.Changes, gen.Changes)
}

func TestImportInvalidPluginWritesNothing(t *testing.T) {
	w := newMemoryWriter()
	im := NewImporter(w)

	file := testFile()
	file.Plugins = append(file.Plugins, catalog.Plugin{Slug: ""})

	_, err := im.Import(context.Background(), file)
	assert.ErrorIs(t, err, ErrInvalidPlugin)
	assert.Empty(t, w.keys())
	assert.Empty(t, w.generations)
}

func TestImportWriteFailure(t *testing.T) {
	w := newMemoryWriter()
	w.failSlug = "essentials"
	inv := &countingInvalidator{}
	im := NewImporter(w, WithInvalidator(inv))

	_, err := im.Import(context.Background(), testFile())
	require.Error(t, err)
	assert.ErrorContains(t, err, "bukkit/essentials")
	assert.ErrorContains(t, err, "failed to store 1 of 3 plugins")
	assert.Empty(t, w.generations)
	assert.Zero(t, inv.calls)
}

func TestImportGenerationFailure(t *testing.T) {
	w := newMemoryWriter()
	w.genErr = errors.New("disk full")

	_, err := NewImporter(w).Import(context.Background(), testFile())
	assert.ErrorContains(t, err, "failed to record generation")
}

func TestImportInvalidateFailureIsLogged(t *testing.T) {
	log, hook := test.NewNullLogger()
	inv := &countingInvalidator{err: errors.New("redis down")}

	_, err := NewImporter(newMemoryWriter(), WithInvalidator(inv), WithLogger(log)).Import(context.Background(), testFile())
	require.NoError(t, err)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "Failed to invalidate catalog cache" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestImportMirrorsLatestFiles(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/we-5.5.jar":
			w.Write([]byte("worldedit 5.5"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer origin.Close()

	mirror := newMemoryMirror()
	mirror.objects["bukkit/essentials/2.9"] = "already mirrored"

	file := testFile()
	file.Plugins[0].Versions[1].Download = origin.URL + "/we-5.5.jar"
	file.Plugins[1].Versions[0].Download = origin.URL + "/ess-2.9.jar"
	file.Plugins[2].Versions = []catalog.Version{{Version: "1.0", Download: origin.URL + "/missing.jar"}}

	log, hook := test.NewNullLogger()
	im := NewImporter(newMemoryWriter(), WithMirror(mirror, origin.Client()), WithLogger(log))

	_, err := im.Import(context.Background(), file)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"bukkit/worldedit/5.5":  "worldedit 5.5",
		"bukkit/essentials/2.9": "already mirrored",
	}, mirror.objects)

	// the missing spout file is logged, not fatal
	var warned int
	for _, e := range hook.AllEntries() {
		if e.Message == "Failed to mirror plugin file" {
			warned++
		}
	}
	assert.Equal(t, 1, warned)
}

func TestImportFile(t *testing.T) {
	w := newMemoryWriter()
	im := NewImporter(w)

	path := writeCatalog(t, t.TempDir(), "catalog.yaml", yamlCatalog)
	gen, err := im.ImportFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "speedy", gen.Type)
	assert.Equal(t, []string{"bukkit/worldedit"}, w.keys())
}
