package api

import "github.com/platinummonkey/bukget/pkg/catalog"

// fieldOp is one document rewrite
type fieldOp int

const (
	opRename fieldOp = iota // move source to dest
	opCopy                  // duplicate source into dest
	opDrop                  // delete source
)

// fieldRule rewrites a single top-level key
type fieldRule struct {
	source string
	dest   string
	op     fieldOp
}

func rename(source, dest string) fieldRule { return fieldRule{source: source, dest: dest, op: opRename} }
func copyTo(source, dest string) fieldRule { return fieldRule{source: source, dest: dest, op: opCopy} }
func drop(source string) fieldRule         { return fieldRule{source: source, op: opDrop} }

// reshapeTable holds the rules for plugin documents and for each of their versions
type reshapeTable struct {
	plugin  []fieldRule
	version []fieldRule
}

// Legacy envelopes. v3 serves native documents and has no table.
var (
	v1Shape = reshapeTable{
		plugin: []fieldRule{
			rename("slug", "name"),
			rename("dbo_page", "bukkitdev_link"),
			rename("description", "desc"),
			drop("logo"),
			drop("logo_full"),
			drop("server"),
			drop("website"),
		},
		version: []fieldRule{
			rename("download", "dl_link"),
			copyTo("version", "name"),
			drop("commands"),
			drop("permissions"),
			drop("changelog"),
			drop("md5"),
			drop("slug"),
		},
	}

	v2Shape = reshapeTable{
		plugin: []fieldRule{
			rename("dbo_page", "link"),
			rename("server", "repo"),
			rename("plugin_name", "pluginname"),
			drop("logo"),
			drop("logo_full"),
			drop("website"),
		},
		version: []fieldRule{
			drop("slug"),
			drop("changelog"),
		},
	}
)

// apply rewrites doc in place. Rules whose source is missing are skipped, so
// projected documents reshape cleanly.
func (t reshapeTable) apply(doc catalog.Document) catalog.Document {
	applyRules(doc, t.plugin)

	if versions, ok := doc["versions"].([]interface{}); ok {
		for _, v := range versions {
			if vdoc, ok := v.(map[string]interface{}); ok {
				applyRules(vdoc, t.version)
			}
		}
	}
	return doc
}

func applyRules(doc map[string]interface{}, rules []fieldRule) {
	for _, rule := range rules {
		value, ok := doc[rule.source]
		if !ok {
			continue
		}
		switch rule.op {
		case opRename:
			delete(doc, rule.source)
			doc[rule.dest] = value
		case opCopy:
			doc[rule.dest] = value
		case opDrop:
			delete(doc, rule.source)
		}
	}
}
