// Package catalog provides the plugin catalog model and the query engine shared by
// every API version.
//
// # Overview
//
// Plugins, versions, authors, categories and generations are loaded from a
// Repository and exposed as Documents: JSON object trees that can be filtered,
// sorted, paginated and projected without touching stored records.
//
// # Field Projection
//
// Fields are comma-separated dotted paths. An empty set returns whole documents and
// names that do not exist are ignored:
//
//	docs, err := service.ListPlugins(ctx, "bukkit", catalog.ParseFields("slug,versions.version"), "-popularity.daily")
//
// # Search
//
// Filters combine with AND semantics. The "and" and "or" actions take a nested list
// of filters:
//
//	docs, err := service.Search(ctx, "", []catalog.Filter{
//		{Field: "categories", Action: catalog.ActionIn, Value: []interface{}{"Admin Tools"}},
//		{Field: "popularity.monthly", Action: catalog.ActionGreater, Value: 100},
//	}, nil, catalog.DefaultSort)
//
// # Pagination
//
// A Window applies only when both start and size are valid non-negative integers.
// Bounds past the end truncate silently.
package catalog
