// Package schema implements the dynamic ontology loader: it reads a
// user-authored entity/edge description document and materializes a
// typed-but-data-driven Schema object. Fields are not statically known
// Go types — per the design note on dynamic per-user types, FieldSpec is
// the tagged record the graph client consumes as data.
package schema

import (
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vaultbridge/internal/jsonx"
)

// FieldKind enumerates the semantic types a schema field may declare.
type FieldKind string

const (
	KindString    FieldKind = "string"
	KindInt       FieldKind = "int"
	KindFloat     FieldKind = "float"
	KindBool      FieldKind = "bool"
	KindDatetime  FieldKind = "datetime"
	KindListStr   FieldKind = "list<string>"
	KindListInt   FieldKind = "list<int>"
	KindListFloat FieldKind = "list<float>"
)

// FieldSpec is one property of an entity or edge type.
type FieldSpec struct {
	Name        string
	Kind        FieldKind
	Required    bool
	Description string
}

// EntityType is a named record with a human description and an ordered
// field list. Every entity type gets a universal `tags: list<string>`
// field in addition to its declared fields.
type EntityType struct {
	Name        string
	Description string
	Fields      []FieldSpec
}

// EdgeType mirrors EntityType but never gets a canonical property
// fallback — its fields always come strictly from what the user declared.
type EdgeType struct {
	Name        string
	Description string
	Fields      []FieldSpec
}

// EdgePair is the ordered (source, target) key for EdgeTypeMap.
type EdgePair struct {
	Source string
	Target string
}

// Schema is the materialized custom ontology.
type Schema struct {
	EntityTypes []EntityType
	EdgeTypes   []EdgeType
	EdgeTypeMap map[EdgePair][]string
}

func (s *Schema) IsEmpty() bool {
	return s == nil || len(s.EntityTypes) == 0
}

const (
	primaryPluginID = "vaultbridge"
	legacyPluginID  = "megamem-mcp"
)

// canonicalFields are the fixed property sets used when a built-in
// entity type has no explicitly enabled properties, one entry per
// built-in type the dynamic model loader recognizes by name.
var canonicalFields = map[string][]FieldSpec{
	"Person": {
		{Name: "givenName", Kind: KindString, Description: "Given name or first name of the person"},
		{Name: "familyName", Kind: KindString, Description: "Family name, surname, or last name of the person"},
		{Name: "c_name", Kind: KindString, Description: "Complete legal name including all given, middle, and family names"},
		{Name: "aliases", Kind: KindListStr, Description: "Alternative names, nicknames, or pseudonyms by which the person is also known"},
		{Name: "identity_type", Kind: KindString, Description: "Classification of the person's legal and social identity status"},
		{Name: "birthDate", Kind: KindDatetime, Description: "Date the person was born"},
		{Name: "address", Kind: KindString, Description: "Physical address or geographic location where the person resides"},
		{Name: "email", Kind: KindString, Description: "Primary email address used for contact"},
		{Name: "worksFor", Kind: KindString, Description: "Organization or institution the person is currently employed by"},
		{Name: "jobTitle", Kind: KindString, Description: "Current professional role or title"},
		{Name: "url", Kind: KindString, Description: "Personal website or primary online presence"},
		{Name: "needs", Kind: KindString, Description: "Resources, skills, or support the person requires"},
		{Name: "offers", Kind: KindString, Description: "Skills, services, or value the person can provide"},
		{Name: "sameAs", Kind: KindListStr, Description: "URIs that identify the same person on other platforms"},
	},
	"Organization": {
		{Name: "c_name", Kind: KindString, Description: "Complete legal name of the organization"},
		{Name: "aliases", Kind: KindListStr, Description: "Alternative or trade names by which the organization is known"},
		{Name: "org_type", Kind: KindString, Description: "Legal structure and registration type of the organization"},
		{Name: "foundingDate", Kind: KindDatetime, Description: "Date the organization was founded"},
		{Name: "address", Kind: KindString, Description: "Physical headquarters or primary business location"},
		{Name: "needs", Kind: KindString, Description: "Resources or capabilities the organization requires"},
		{Name: "offers", Kind: KindString, Description: "Products, services, or value the organization provides"},
		{Name: "url", Kind: KindString, Description: "Official website of the organization"},
		{Name: "sameAs", Kind: KindListStr, Description: "URIs that identify the same organization on other platforms"},
	},
	"Technology": {
		{Name: "c_name", Kind: KindString, Description: "Complete official name of the technology"},
		{Name: "aliases", Kind: KindListStr, Description: "Alternative or abbreviated names for the technology"},
		{Name: "category", Kind: KindString, Description: "Primary classification of the technology type"},
		{Name: "opensource", Kind: KindBool, Description: "Whether the technology is open source"},
		{Name: "url", Kind: KindString, Description: "Official documentation or project page"},
		{Name: "sameAs", Kind: KindListStr, Description: "URIs that identify the same technology on other platforms"},
	},
	"Product": {
		{Name: "c_name", Kind: KindString, Description: "Complete official name of the product or service"},
		{Name: "aliases", Kind: KindListStr, Description: "Alternative product names or brand variations"},
		{Name: "offering_type", Kind: KindString, Description: "Primary business model and delivery method of the offering"},
		{Name: "category", Kind: KindString, Description: "Market segment or functional category of the product"},
		{Name: "url", Kind: KindString, Description: "Official product page or marketing website"},
		{Name: "sameAs", Kind: KindListStr, Description: "URIs that identify the same product on other platforms"},
	},
	"Project": {
		{Name: "c_name", Kind: KindString, Description: "Complete official name of the project or initiative"},
		{Name: "aliases", Kind: KindListStr, Description: "Alternative project names or codenames"},
		{Name: "project_type", Kind: KindString, Description: "Classification of the project's primary purpose and methodology"},
		{Name: "status", Kind: KindString, Description: "Current phase of the project lifecycle"},
		{Name: "needs", Kind: KindString, Description: "Resources or support the project requires"},
		{Name: "offers", Kind: KindString, Description: "Outcomes or deliverables the project produces"},
		{Name: "url", Kind: KindString, Description: "Official project page or repository"},
		{Name: "sameAs", Kind: KindListStr, Description: "URIs that identify the same project on other platforms"},
	},
	"WebPage": {
		{Name: "c_name", Kind: KindString, Description: "Complete title or headline of the web page"},
		{Name: "aliases", Kind: KindListStr, Description: "Alternative titles or SEO variations for the page"},
		{Name: "url", Kind: KindString, Required: true, Description: "Complete web address where the page can be accessed"},
		{Name: "sameAs", Kind: KindListStr, Description: "URIs of archived or mirrored versions of the same page"},
	},
	"Note": {
		{Name: "note_type", Kind: KindString, Description: "Classification of the note's purpose and content structure"},
		{Name: "author", Kind: KindString, Description: "Person who created the note"},
		{Name: "created_date", Kind: KindDatetime, Description: "Date the note was originally created"},
	},
	"Article": {
		{Name: "c_name", Kind: KindString, Description: "Complete title or headline of the published article"},
		{Name: "aliases", Kind: KindListStr, Description: "Alternative or working titles for the same article"},
		{Name: "article_type", Kind: KindString, Description: "Genre or format classification of the published content"},
		{Name: "author", Kind: KindString, Description: "Person or organization credited as the article's author"},
		{Name: "published_date", Kind: KindDatetime, Description: "Date the article was published"},
		{Name: "url", Kind: KindString, Description: "Web address where the article can be read"},
		{Name: "sameAs", Kind: KindListStr, Description: "URIs of archived or republished versions of the same article"},
	},
}

var unknownTypeFallback = []FieldSpec{
	{Name: "c_name", Kind: KindString},
	{Name: "aliases", Kind: KindListStr},
	{Name: "sameAs", Kind: KindListStr},
}

var tagsField = FieldSpec{Name: "tags", Kind: KindListStr}

// dataDoc is the raw shape of data.json.
type dataDoc struct {
	EntityDescriptions       map[string]string                  `json:"entityDescriptions"`
	PropertySelections       map[string]map[string]bool         `json:"propertySelections"`
	PropertyDescriptions     map[string]map[string]propertyDesc `json:"propertyDescriptions"`
	EdgeDescriptions         map[string]string                  `json:"edgeDescriptions"`
	EdgePropertySelections   map[string]map[string]bool         `json:"edgePropertySelections"`
	EdgePropertyDescriptions map[string]map[string]propertyDesc `json:"edgePropertyDescriptions"`
	EdgeTypeMap              []edgeTypeMapEntry                 `json:"edgeTypeMap"`
}

type propertyDesc struct {
	FieldType   string `json:"fieldType"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

type edgeTypeMapEntry struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Edges  []string `json:"edges"`
}

func mapFieldType(t string) FieldKind {
	switch t {
	case "int", "integer":
		return KindInt
	case "float", "number":
		return KindFloat
	case "bool", "boolean":
		return KindBool
	case "datetime", "date":
		return KindDatetime
	case "list<int>":
		return KindListInt
	case "list<float>":
		return KindListFloat
	case "list<string>", "list":
		return KindListStr
	default:
		return KindString
	}
}

// Loader loads and caches the schema document for exactly one
// vault/override path combination. Its single-initialization gate is a
// sync.Once belonging to this instance, not a package global: every
// vault registered with a Registry gets its own Loader and therefore
// its own independent gate.
type Loader struct {
	vaultRoot    string
	explicitPath string

	once   sync.Once
	result *Schema
	err    error
}

// Load parses the schema document on the first call and returns the
// same result on every subsequent call, regardless of how many
// goroutines call it concurrently.
func (l *Loader) Load() (*Schema, error) {
	l.once.Do(func() {
		l.result, l.err = loadOnce(l.vaultRoot, l.explicitPath)
	})
	return l.result, l.err
}

// Registry hands out one Loader per vault key, backed by an LRU so a
// long-lived daemon serving many vaults doesn't keep every vault's
// loader (and its parsed schema) alive forever.
type Registry struct {
	mu     sync.Mutex
	loaders *lru.Cache[string, *Loader]
}

// NewRegistry builds a Registry retaining loaders for up to size
// distinct vault keys.
func NewRegistry(size int) *Registry {
	if size <= 0 {
		size = 32
	}
	c, _ := lru.New[string, *Loader](size)
	return &Registry{loaders: c}
}

// LoaderFor returns the Loader for (vaultRoot, explicitDataJSONPath),
// creating it on first use.
func (r *Registry) LoaderFor(vaultRoot, explicitDataJSONPath string) *Loader {
	key := explicitDataJSONPath
	if key == "" {
		key = vaultRoot
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.loaders.Get(key); ok {
		return l
	}
	l := &Loader{vaultRoot: vaultRoot, explicitPath: explicitDataJSONPath}
	r.loaders.Add(key, l)
	return l
}

func loadOnce(vaultRoot, explicitDataJSONPath string) (*Schema, error) {
	path := explicitDataJSONPath
	if path == "" {
		primary := filepath.Join(vaultRoot, ".obsidian", "plugins", primaryPluginID, "data.json")
		if _, statErr := os.Stat(primary); statErr == nil {
			path = primary
		} else {
			path = filepath.Join(vaultRoot, ".obsidian", "plugins", legacyPluginID, "data.json")
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return &Schema{}, nil
	}

	var doc dataDoc
	if err := jsonx.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	schema := &Schema{EdgeTypeMap: map[EdgePair][]string{}}

	for name := range doc.EntityDescriptions {
		fields := buildFields(doc.PropertySelections[name], doc.PropertyDescriptions[name])
		if len(fields) == 0 {
			if canon, ok := canonicalFields[name]; ok {
				fields = append([]FieldSpec{}, canon...)
			} else {
				fields = append([]FieldSpec{}, unknownTypeFallback...)
			}
		}
		fields = append(fields, tagsField)
		schema.EntityTypes = append(schema.EntityTypes, EntityType{
			Name:        name,
			Description: doc.EntityDescriptions[name],
			Fields:      fields,
		})
	}

	for name := range doc.EdgeDescriptions {
		fields := buildFields(doc.EdgePropertySelections[name], doc.EdgePropertyDescriptions[name])
		schema.EdgeTypes = append(schema.EdgeTypes, EdgeType{
			Name:        name,
			Description: doc.EdgeDescriptions[name],
			Fields:      fields,
		})
	}

	for _, e := range doc.EdgeTypeMap {
		schema.EdgeTypeMap[EdgePair{Source: e.Source, Target: e.Target}] = e.Edges
	}

	return schema, nil
}

func buildFields(selections map[string]bool, descriptions map[string]propertyDesc) []FieldSpec {
	var fields []FieldSpec
	for prop, enabled := range selections {
		if !enabled {
			continue
		}
		desc := descriptions[prop]
		fields = append(fields, FieldSpec{
			Name:        prop,
			Kind:        mapFieldType(desc.FieldType),
			Required:    desc.Required,
			Description: desc.Description,
		})
	}
	return fields
}
