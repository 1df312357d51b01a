package board

import "sort"

// FilterState is the set of active category and completion predicates.
// The zero value hides everything; use NewFilterState.
type FilterState struct {
	categories map[string]bool
	completion map[Completion]bool
	// known remembers every category ever offered so that a category the
	// user switched off stays off across reloads.
	known map[string]bool
	// restricted filters start new categories switched off.
	restricted bool
}

// NewFilterState activates every given category and both completion states.
func NewFilterState(categories []string) FilterState {
	f := FilterState{
		categories: map[string]bool{},
		completion: map[Completion]bool{Completed: true, NotCompleted: true},
		known:      map[string]bool{},
	}
	for _, c := range categories {
		f.categories[c] = true
		f.known[c] = true
	}
	return f
}

func (f FilterState) Clone() FilterState {
	out := FilterState{
		categories: make(map[string]bool, len(f.categories)),
		completion: make(map[Completion]bool, len(f.completion)),
		known:      make(map[string]bool, len(f.known)),
		restricted: f.restricted,
	}
	for k, v := range f.categories {
		out.categories[k] = v
	}
	for k, v := range f.completion {
		out.completion[k] = v
	}
	for k, v := range f.known {
		out.known[k] = v
	}
	return out
}

func (f *FilterState) ensure() {
	if f.categories == nil {
		f.categories = map[string]bool{}
	}
	if f.completion == nil {
		f.completion = map[Completion]bool{}
	}
	if f.known == nil {
		f.known = map[string]bool{}
	}
}

// Merge activates categories that have never been offered before and leaves
// the user's choices for known categories untouched.
func (f *FilterState) Merge(categories []string) {
	f.ensure()
	for _, c := range categories {
		if f.known[c] {
			continue
		}
		f.known[c] = true
		if !f.restricted {
			f.categories[c] = true
		}
	}
}

func (f *FilterState) ToggleCategory(category string) {
	f.ensure()
	f.known[category] = true
	if f.categories[category] {
		delete(f.categories, category)
		return
	}
	f.categories[category] = true
}

func (f *FilterState) ToggleCompletion(c Completion) {
	f.ensure()
	if f.completion[c] {
		delete(f.completion, c)
		return
	}
	f.completion[c] = true
}

// SetCategories replaces the active categories.
func (f *FilterState) SetCategories(categories []string) {
	f.ensure()
	f.categories = map[string]bool{}
	for _, c := range categories {
		f.categories[c] = true
		f.known[c] = true
	}
}

// Restrict shows only the given categories, including ones the board has
// not offered yet. Categories that appear later start switched off.
func (f *FilterState) Restrict(categories []string) {
	f.SetCategories(categories)
	f.restricted = true
}

// Disable switches categories off and remembers them, so a later Merge keeps
// them off.
func (f *FilterState) Disable(categories ...string) {
	f.ensure()
	for _, c := range categories {
		f.known[c] = true
		delete(f.categories, c)
	}
}

// Hidden returns the known categories that are switched off, sorted.
func (f FilterState) Hidden() []string {
	out := make([]string, 0, len(f.known))
	for c := range f.known {
		if !f.categories[c] {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

func (f *FilterState) SetCompletion(states []Completion) {
	f.ensure()
	f.completion = map[Completion]bool{}
	for _, c := range states {
		f.completion[c] = true
	}
}

// Reset turns every known category and both completion states back on.
func (f *FilterState) Reset() {
	f.ensure()
	f.restricted = false
	for c := range f.known {
		f.categories[c] = true
	}
	f.completion = map[Completion]bool{Completed: true, NotCompleted: true}
}

func (f FilterState) HasCategory(category string) bool {
	return f.categories[category]
}

func (f FilterState) HasCompletion(c Completion) bool {
	return f.completion[c]
}

// Categories returns the active categories, sorted.
func (f FilterState) Categories() []string {
	out := make([]string, 0, len(f.categories))
	for c := range f.categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Known returns every category the filter has been offered, sorted.
func (f FilterState) Known() []string {
	out := make([]string, 0, len(f.known))
	for c := range f.known {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (f FilterState) Completion() []Completion {
	out := make([]Completion, 0, len(f.completion))
	for _, c := range AllCompletion {
		if f.completion[c] {
			out = append(out, c)
		}
	}
	return out
}

// Allows reports whether a challenge passes both predicates.
func (f FilterState) Allows(c Challenge, solved bool) bool {
	if !f.categories[c.Category] {
		return false
	}
	state := NotCompleted
	if solved {
		state = Completed
	}
	return f.completion[state]
}
