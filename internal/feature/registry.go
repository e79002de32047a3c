// internal/feature/registry.go - Global feature identity and interaction state
package feature

// Registry maps stable feature IDs to their records and is the single
// source of truth for selected and hovered state. It never mutates
// feature geometry.
type Registry struct {
	features map[string]*Feature
	selected map[string]struct{}
	hovered  map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		features: make(map[string]*Feature),
		selected: make(map[string]struct{}),
		hovered:  make(map[string]struct{}),
	}
}

// Register inserts a feature; it is a no-op when the ID is present.
func (r *Registry) Register(f *Feature) {
	if _, exists := r.features[f.ID]; exists {
		return
	}
	r.features[f.ID] = f
	// A feature materializing under an already-selected or hovered ID
	// inherits that state.
	if _, ok := r.selected[f.ID]; ok {
		f.Selected = true
	}
	if _, ok := r.hovered[f.ID]; ok {
		f.Hovered = true
	}
}

// Unregister removes a feature from the map and both identity sets.
func (r *Registry) Unregister(id string) {
	delete(r.features, id)
	delete(r.selected, id)
	delete(r.hovered, id)
}

// Get returns the feature for an ID, nil when absent.
func (r *Registry) Get(id string) *Feature {
	return r.features[id]
}

// Len returns the number of registered features.
func (r *Registry) Len() int {
	return len(r.features)
}

// IsSelected reports selection membership for an ID.
func (r *Registry) IsSelected(id string) bool {
	_, ok := r.selected[id]
	return ok
}

// IsHovered reports hover membership for an ID.
func (r *Registry) IsHovered(id string) bool {
	_, ok := r.hovered[id]
	return ok
}

// MarkSelected mutates the selected set and, if the feature is
// materialized, flips its flag.
func (r *Registry) MarkSelected(id string, selected bool) {
	if selected {
		r.selected[id] = struct{}{}
	} else {
		delete(r.selected, id)
	}
	if f := r.features[id]; f != nil {
		f.Selected = selected
	}
}

// MarkHovered mutates the hovered set and, if the feature is
// materialized, flips its flag.
func (r *Registry) MarkHovered(id string, hovered bool) {
	if hovered {
		r.hovered[id] = struct{}{}
	} else {
		delete(r.hovered, id)
	}
	if f := r.features[id]; f != nil {
		f.Hovered = hovered
	}
}

// SelectedIDs snapshots the selected set.
func (r *Registry) SelectedIDs() []string {
	out := make([]string, 0, len(r.selected))
	for id := range r.selected {
		out = append(out, id)
	}
	return out
}

// HoveredIDs snapshots the hovered set.
func (r *Registry) HoveredIDs() []string {
	out := make([]string, 0, len(r.hovered))
	for id := range r.hovered {
		out = append(out, id)
	}
	return out
}

// SelectedFeatures returns the materialized selected features.
func (r *Registry) SelectedFeatures() []*Feature {
	out := make([]*Feature, 0, len(r.selected))
	for id := range r.selected {
		if f := r.features[id]; f != nil {
			out = append(out, f)
		}
	}
	return out
}

// Each iterates all registered features.
func (r *Registry) Each(fn func(*Feature)) {
	for _, f := range r.features {
		fn(f)
	}
}

// Reset drops every feature. With keepSelection the selected ID set is
// kept so it can be reapplied after tiles at the new zoom materialize;
// otherwise it is cleared too. The hovered set is always cleared; hover
// does not survive a rebuild.
func (r *Registry) Reset(keepSelection bool) {
	r.features = make(map[string]*Feature)
	r.hovered = make(map[string]struct{})
	if !keepSelection {
		r.selected = make(map[string]struct{})
	}
}

// Clear empties everything, used on disposal.
func (r *Registry) Clear() {
	r.features = make(map[string]*Feature)
	r.selected = make(map[string]struct{})
	r.hovered = make(map[string]struct{})
}
