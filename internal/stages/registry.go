package stages

import "sort"

// registry is the process-wide name -> constructor map. It is
// populated once at startup via Register calls from each stage file's
// init() and is read-only thereafter — no locking is needed on the hot
// path.
var registry = make(map[string]Constructor)

// metadata mirrors the registry for the /api/stages listing: static
// per-stage descriptive info that never changes after startup.
var metadata = make(map[string]Metadata)

// Option describes one configuration field a stage's constructor
// accepts, used only for the /api/stages discovery endpoint.
type Option struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Type        string `json:"type"` // "string", "number", "boolean", "object"
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description"`
}

// Metadata is the descriptive record returned by the /api/stages
// endpoint for one registered stage type.
type Metadata struct {
	Type           string   `json:"type"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	IsNetworkStage bool     `json:"is_network_stage"`
	Options        []Option `json:"options"`
}

// Register adds a stage constructor to the registry under name. It is
// called from each stage implementation's init() function and panics
// on a duplicate registration, since that can only indicate a
// programming error discovered at startup, never at runtime.
func Register(name string, ctor Constructor, md Metadata) {
	if _, exists := registry[name]; exists {
		panic("stages: duplicate registration for " + name)
	}
	md.Type = name
	registry[name] = ctor
	metadata[name] = md
}

// Get looks up a stage constructor by name, returning
// *UnknownStageError if absent.
func Get(name string) (Constructor, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, &UnknownStageError{Type: name}
	}
	return ctor, nil
}

// List returns registry metadata sorted by stage type name, for the
// /api/stages endpoint.
func List() []Metadata {
	names := make([]string, 0, len(metadata))
	for name := range metadata {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Metadata, 0, len(names))
	for _, name := range names {
		out = append(out, metadata[name])
	}
	return out
}

// IsNetworkStage reports whether a registered stage type issues the
// primary network request, without constructing an instance. Used by
// the executor's pre-flight validation to check a pipeline has at
// least one eligible stage before paying for construction.
func IsNetworkStage(name string) bool {
	return metadata[name].IsNetworkStage
}
