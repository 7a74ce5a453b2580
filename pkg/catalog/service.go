package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// LatestVersion is the version token that resolves to the newest version of a plugin
const LatestVersion = "latest"

// Service provides the list, detail and search primitives every API version is built
// on. It loads records from a Repository, then sorts, filters and projects them as
// documents.
type Service struct {
	repo Repository
}

// NewService creates a new catalog service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListPlugins lists the plugins for a server (all servers when empty)
func (s *Service) ListPlugins(ctx context.Context, server string, fields Fields, sortKey string) ([]Document, error) {
	return s.listPlugins(ctx, PluginQuery{Server: server}, fields, sortKey)
}

// ListAuthorPlugins lists the plugins credited to an author. An author that is not
// known at all is reported as ErrNotFound.
func (s *Service) ListAuthorPlugins(ctx context.Context, server, name string, fields Fields, sortKey string) ([]Document, error) {
	docs, err := s.listPlugins(ctx, PluginQuery{Server: server, Author: name}, fields, sortKey)
	if err != nil || len(docs) > 0 {
		return docs, err
	}

	authors, err := s.repo.ListAuthors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list authors: %w", err)
	}
	for _, a := range authors {
		if a.Name == name {
			return docs, nil
		}
	}
	return nil, fmt.Errorf("author %s: %w", name, ErrNotFound)
}

// ListCategoryPlugins lists the plugins filed under a category. A category that is
// not known at all is reported as ErrNotFound.
func (s *Service) ListCategoryPlugins(ctx context.Context, server, name string, fields Fields, sortKey string) ([]Document, error) {
	docs, err := s.listPlugins(ctx, PluginQuery{Server: server, Category: name}, fields, sortKey)
	if err != nil || len(docs) > 0 {
		return docs, err
	}

	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	for _, c := range categories {
		if c.Name == name {
			return docs, nil
		}
	}
	return nil, fmt.Errorf("category %s: %w", name, ErrNotFound)
}

// ListAuthors returns every author
func (s *Service) ListAuthors(ctx context.Context) ([]Author, error) {
	return s.repo.ListAuthors(ctx)
}

// ListCategories returns every category
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// ListGenInfo returns the last size generations. A size below one returns only the
// most recent generation.
func (s *Service) ListGenInfo(ctx context.Context, size int) ([]Generation, error) {
	if size < 1 {
		size = 1
	}
	return s.repo.ListGenerations(ctx, size)
}

// Search returns the plugins matching every filter
func (s *Service) Search(ctx context.Context, server string, filters []Filter, fields Fields, sortKey string) ([]Document, error) {
	match, err := CompileFilters(filters)
	if err != nil {
		return nil, err
	}

	// filters on version fields need the version lists loaded
	withVersions := needsVersions(fields, sortKey)
	for _, f := range filters {
		if filterTouchesVersions(f) {
			withVersions = true
		}
	}

	plugins, err := s.repo.ListPlugins(ctx, PluginQuery{Server: server, WithVersions: withVersions})
	if err != nil {
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}

	docs, err := toDocuments(plugins)
	if err != nil {
		return nil, err
	}

	matched := docs[:0]
	for _, doc := range docs {
		if match(doc) {
			matched = append(matched, doc)
		}
	}

	SortDocuments(matched, sortKey)
	return ProjectAll(matched, fields), nil
}

// PluginDetails returns one plugin document. When version is set the versions list
// is narrowed to that version ("latest" selects the newest).
func (s *Service) PluginDetails(ctx context.Context, server, slug, version string, fields Fields) (Document, error) {
	plugin, err := s.repo.GetPlugin(ctx, server, slug)
	if err != nil {
		return nil, err
	}

	if version != "" {
		plugin.Versions = selectVersions(plugin.Versions, version)
	}
	if plugin.Versions == nil {
		plugin.Versions = []Version{}
	}

	doc, err := ToDocument(plugin)
	if err != nil {
		return nil, err
	}
	return Project(doc, fields), nil
}

// ResolveDownload finds the version a download request refers to. "latest" in any
// case resolves to the newest version; anything else must match exactly.
func (s *Service) ResolveDownload(ctx context.Context, server, slug, version string) (Version, error) {
	plugin, err := s.repo.GetPlugin(ctx, server, slug)
	if err != nil {
		return Version{}, err
	}

	versions := selectVersions(plugin.Versions, version)
	if len(versions) == 0 {
		return Version{}, fmt.Errorf("%s %s: %w", slug, version, ErrVersionNotFound)
	}
	return versions[0], nil
}

func (s *Service) listPlugins(ctx context.Context, q PluginQuery, fields Fields, sortKey string) ([]Document, error) {
	q.WithVersions = needsVersions(fields, sortKey)

	plugins, err := s.repo.ListPlugins(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}

	docs, err := toDocuments(plugins)
	if err != nil {
		return nil, err
	}

	SortDocuments(docs, sortKey)
	return ProjectAll(docs, fields), nil
}

func selectVersions(versions []Version, version string) []Version {
	if strings.EqualFold(version, LatestVersion) {
		if len(versions) == 0 {
			return []Version{}
		}
		return versions[:1]
	}
	selected := []Version{}
	for _, v := range versions {
		if v.Version == version {
			selected = append(selected, v)
		}
	}
	return selected
}

func toDocuments(plugins []Plugin) ([]Document, error) {
	docs := make([]Document, 0, len(plugins))
	for i := range plugins {
		doc, err := ToDocument(&plugins[i])
		if err != nil {
			return nil, err
		}
		if plugins[i].Versions == nil {
			delete(doc, "versions")
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func needsVersions(fields Fields, sortKey string) bool {
	if fields.All() {
		return true
	}
	if touchesVersions(strings.TrimPrefix(sortKey, "-")) {
		return true
	}
	for _, f := range fields {
		if touchesVersions(f) {
			return true
		}
	}
	return false
}

func filterTouchesVersions(f Filter) bool {
	if touchesVersions(f.Field) {
		return true
	}
	nested, err := nestedFilters(f.Value)
	if err != nil {
		return false
	}
	for _, n := range nested {
		if filterTouchesVersions(n) {
			return true
		}
	}
	return false
}

func touchesVersions(field string) bool {
	field = strings.TrimSpace(field)
	return field == "versions" || strings.HasPrefix(field, "versions.")
}

// IsNotFound reports whether err means the requested record does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrVersionNotFound)
}
