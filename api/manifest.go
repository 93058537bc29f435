package api

// Manifest declares the remolders applied to a pack's resources.
type Manifest struct {
	// Version of the manifest schema.
	Version string `yaml:"version" json:"version"`
	// Config holds the named values that conditions test. Values given on
	// the command line override these.
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
	// Remolders run in declaration order on every location they target.
	Remolders []Remolder `yaml:"remolders" json:"remolders"`
}

// Remolder declares one transformation and where it applies.
type Remolder struct {
	// Name labels the remolder in logs. Defaults to "<kind>#<index>".
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Targets are path.Match globs over resource locations.
	Targets []string `yaml:"targets" json:"targets"`
	// Packs are path.Match globs over pack ids; empty matches every pack.
	Packs []string `yaml:"packs,omitempty" json:"packs,omitempty"`
	// When gates the remolder on config values.
	When *Condition `yaml:"when,omitempty" json:"when,omitempty"`
	// Kind selects the remolder implementation (jsonpath, merge, lua).
	Kind string `yaml:"kind" json:"kind"`
	// Params are the remaining keys, passed to the kind.
	Params map[string]any `yaml:",inline" json:"params,omitempty"`
}

// Condition tests a named config value.
type Condition struct {
	Value string `yaml:"value" json:"value"`
	// Predicates must all pass. Without predicates the value must be a
	// boolean and is used directly.
	Predicates []Predicate `yaml:"predicates,omitempty" json:"predicates,omitempty"`
	Inverted   bool        `yaml:"inverted,omitempty" json:"inverted,omitempty"`
}

// Predicate is one test against a config value.
type Predicate struct {
	// Type is equals, contains, matches, greater_than or less_than.
	Type     string `yaml:"type" json:"type"`
	Value    any    `yaml:"value" json:"value"`
	Inverted bool   `yaml:"inverted,omitempty" json:"inverted,omitempty"`
}
