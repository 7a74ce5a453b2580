// Package ingest loads plugin catalogs from JSON or YAML files into a store.
//
// A catalog file is either a document with generation metadata:
//
//	parser: bukkit
//	type: speedy
//	plugins:
//	  - slug: worldedit
//	    server: bukkit
//	    plugin_name: WorldEdit
//	    authors: [sk89q]
//	    versions:
//	      - version: "5.5"
//	        download: http://dev.bukkit.org/media/files/worldedit.jar
//	        date: 1362000000
//
// or a bare list of plugins. Plugins are normalized (server defaults to bukkit,
// versions ordered newest first) and written concurrently. Each import is
// recorded as a generation.
//
//	im := ingest.NewImporter(store,
//		ingest.WithInvalidator(cache),
//		ingest.WithMirror(mirror, nil),
//		ingest.WithLogger(log),
//	)
//	gen, err := im.ImportFile(ctx, "catalog.yaml")
package ingest
