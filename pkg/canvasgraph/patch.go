package canvasgraph

// DataPatch is a partial update for a node's data. Nil fields leave the
// current value untouched; the Config sub-object is deep-merged so a
// partial config update never drops sibling keys.
type DataPatch struct {
	Title   *string
	Color   *string
	Acronym *string
	Config  *ConfigPatch
	// Run replaces the node's stored run outputs when non-nil.
	Run    map[string]any
	Status *RunStatus
}

// ConfigPatch is a partial update for a NodeConfig. Schema and Extra
// maps are merged key-wise; pointer fields replace when set; Routes
// replaces wholesale when non-nil.
type ConfigPatch struct {
	InputSchema   map[string]string
	OutputSchema  map[string]string
	SystemMessage *string
	UserMessage   *string
	Code          *string
	Routes        []Route
	Extra         map[string]any
}

// apply merges the patch into d.
func (p DataPatch) apply(d *NodeData) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Color != nil {
		d.Color = *p.Color
	}
	if p.Acronym != nil {
		d.Acronym = *p.Acronym
	}
	if p.Config != nil {
		p.Config.apply(&d.Config)
	}
	if p.Run != nil {
		d.Run = cloneAnyMap(p.Run)
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
}

// apply merges the patch into c.
func (p ConfigPatch) apply(c *NodeConfig) {
	if p.InputSchema != nil {
		if c.InputSchema == nil {
			c.InputSchema = make(map[string]string, len(p.InputSchema))
		}
		for k, v := range p.InputSchema {
			c.InputSchema[k] = v
		}
	}
	if p.OutputSchema != nil {
		if c.OutputSchema == nil {
			c.OutputSchema = make(map[string]string, len(p.OutputSchema))
		}
		for k, v := range p.OutputSchema {
			c.OutputSchema[k] = v
		}
	}
	if p.SystemMessage != nil {
		c.SystemMessage = *p.SystemMessage
	}
	if p.UserMessage != nil {
		c.UserMessage = *p.UserMessage
	}
	if p.Code != nil {
		c.Code = *p.Code
	}
	if p.Routes != nil {
		c.Routes = make([]Route, len(p.Routes))
		copy(c.Routes, p.Routes)
	}
	if p.Extra != nil {
		if c.Extra == nil {
			c.Extra = make(map[string]any, len(p.Extra))
		}
		for k, v := range p.Extra {
			c.Extra[k] = cloneValue(v)
		}
	}
}

// String returns a pointer to s, for building patches inline.
func String(s string) *string { return &s }

// Status returns a pointer to s, for building patches inline.
func Status(s RunStatus) *RunStatus { return &s }
