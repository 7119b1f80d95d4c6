package sim

// ModuleInfo describes a pipeline stage for logs and reports.
type ModuleInfo struct {
	ID          string // Internal identifier (used for stage timing)
	Name        string // Display name
	Description string // What this stage does
	Category    string // Grouping (e.g., "transport", "weighting")
}

// Catalog holds metadata about all pipeline stages.
// This centralizes stage naming so the pipeline log and stage timing stay in sync.
type Catalog struct {
	modules []ModuleInfo
	byID    map[string]ModuleInfo
}

// NewCatalog creates a catalog with all known stages.
func NewCatalog() *Catalog {
	c := &Catalog{
		byID: make(map[string]ModuleInfo),
	}
	c.registerDefaults()
	return c
}

// registerDefaults adds all known stages in pipeline order.
// Update this when adding new stages.
func (c *Catalog) registerDefaults() {
	c.Register(ModuleInfo{ID: "propagation", Name: "Propagation", Description: "Moves candidates one step", Category: "transport"})

	c.Register(ModuleInfo{ID: "acceleration", Name: "Acceleration", Description: "Continuous energy gain along the path", Category: "energy"})
	c.Register(ModuleInfo{ID: "loss", Name: "Loss", Description: "Continuous energy loss along the path", Category: "energy"})

	c.Register(ModuleInfo{ID: "splitting", Name: "Splitting", Description: "Clones candidates crossing energy thresholds", Category: "weighting"})

	c.Register(ModuleInfo{ID: "minEnergy", Name: "Minimum Energy", Description: "Stops candidates below an energy", Category: "limits"})
	c.Register(ModuleInfo{ID: "maxTrajectory", Name: "Maximum Trajectory", Description: "Stops candidates after a path length", Category: "limits"})

	c.Register(ModuleInfo{ID: "observer", Name: "Observer", Description: "Detects and records candidates", Category: "output"})
}

// Register adds a stage to the catalog.
func (c *Catalog) Register(info ModuleInfo) {
	c.modules = append(c.modules, info)
	c.byID[info.ID] = info
}

// Get returns stage info by ID.
func (c *Catalog) Get(id string) (ModuleInfo, bool) {
	info, ok := c.byID[id]
	return info, ok
}

// Name returns the display name for a stage ID.
// Falls back to the ID itself if not found.
func (c *Catalog) Name(id string) string {
	if info, ok := c.byID[id]; ok {
		return info.Name
	}
	return id
}

// All returns all registered stages.
func (c *Catalog) All() []ModuleInfo {
	return c.modules
}

// ByCategory returns stages filtered by category.
func (c *Catalog) ByCategory(category string) []ModuleInfo {
	var result []ModuleInfo
	for _, info := range c.modules {
		if info.Category == category {
			result = append(result, info)
		}
	}
	return result
}

// Categories returns all unique categories in registration order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var cats []string
	for _, info := range c.modules {
		if !seen[info.Category] {
			seen[info.Category] = true
			cats = append(cats, info.Category)
		}
	}
	return cats
}
