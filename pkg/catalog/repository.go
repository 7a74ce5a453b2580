package catalog

import "context"

// Repository is the read side of the catalog store. Implementations return
// ErrNotFound from GetPlugin when the plugin does not exist, and always return
// version lists ordered newest first.
type Repository interface {
	// ListPlugins returns plugins matching the query ordered by server and slug
	ListPlugins(ctx context.Context, q PluginQuery) ([]Plugin, error)

	// GetPlugin returns a plugin with its versions. An empty server matches any server.
	GetPlugin(ctx context.Context, server, slug string) (*Plugin, error)

	// ListAuthors returns every author with the number of plugins credited to them
	ListAuthors(ctx context.Context) ([]Author, error)

	// ListCategories returns every category with the number of plugins filed under it
	ListCategories(ctx context.Context) ([]Category, error)

	// ListGenerations returns the most recent generations, newest first
	ListGenerations(ctx context.Context, limit int) ([]Generation, error)
}

// Writer is the write side of the catalog store, used by ingestion
type Writer interface {
	// UpsertPlugin replaces a plugin and its versions
	UpsertPlugin(ctx context.Context, plugin *Plugin) error

	// AddGeneration records an ingestion run
	AddGeneration(ctx context.Context, gen *Generation) error
}
