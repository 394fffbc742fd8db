package catalog

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph"
	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/ident"
)

// Factory instantiates nodes from a catalog's descriptors.
type Factory struct {
	cat Catalog
}

// NewFactory creates a factory over the catalog.
func NewFactory(cat Catalog) *Factory {
	return &Factory{cat: cat}
}

// CreateOption configures node creation.
type CreateOption func(*createOptions)

type createOptions struct {
	id        string
	title     string
	position  canvasgraph.Position
	existing  map[string]struct{}
	overrides []func(*canvasgraph.NodeConfig)
}

// WithID pins the new node's id instead of generating one.
func WithID(id string) CreateOption {
	return func(o *createOptions) { o.id = id }
}

// WithTitle requests a title; it is still de-duplicated against
// existing titles when WithExistingTitles is given.
func WithTitle(title string) CreateOption {
	return func(o *createOptions) { o.title = title }
}

// WithPosition places the new node on the canvas.
func WithPosition(pos canvasgraph.Position) CreateOption {
	return func(o *createOptions) { o.position = pos }
}

// WithExistingTitles keeps the generated title collision-free against
// the given set. Feed it Store.Titles().
func WithExistingTitles(titles map[string]struct{}) CreateOption {
	return func(o *createOptions) { o.existing = titles }
}

// WithConfigOverrides applies a mutation to the node's config after the
// descriptor defaults are copied in. Overrides win over defaults.
func WithConfigOverrides(fn func(*canvasgraph.NodeConfig)) CreateOption {
	return func(o *createOptions) { o.overrides = append(o.overrides, fn) }
}

// CreateNode instantiates a node of the named type with the
// descriptor's defaults. The config is a deep copy; descriptors are
// never aliased by created nodes.
func (f *Factory) CreateNode(typeName string, opts ...CreateOption) (canvasgraph.Node, error) {
	desc, ok := f.cat.Lookup(typeName)
	if !ok {
		return canvasgraph.Node{}, fmt.Errorf("%w: %s", ErrTypeNotFound, typeName)
	}

	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}

	id := o.id
	if id == "" {
		id = ident.NewID(idPrefix(desc))
	}

	base := o.title
	if base == "" {
		base = ident.Sanitize(desc.Name)
	}
	title := ident.UniqueTitle(base, o.existing)

	cfg := desc.Config.Clone()
	for _, fn := range o.overrides {
		fn(&cfg)
	}

	return canvasgraph.Node{
		ID:       id,
		Type:     desc.Name,
		Position: o.position,
		Data: canvasgraph.NodeData{
			Title:   title,
			Color:   desc.Visual.Color,
			Acronym: desc.Visual.Acronym,
			Config:  cfg,
		},
	}, nil
}

// idPrefix derives an id prefix from the descriptor's acronym, falling
// back to "node".
func idPrefix(desc Descriptor) string {
	if desc.Visual.Acronym != "" {
		return strings.ToLower(desc.Visual.Acronym)
	}
	return "node"
}
