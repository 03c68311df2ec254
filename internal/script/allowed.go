package script

// AllowedSet is an ordered, de-duplicated set of sources a stage may cite.
type AllowedSet struct {
	order []Source
	byKey map[string]int
}

func NewAllowedSet(groups ...[]Source) *AllowedSet {
	a := &AllowedSet{byKey: map[string]int{}}
	for _, g := range groups {
		for _, s := range g {
			a.Add(s)
		}
	}
	return a
}

// Add inserts s when it is valid and not present yet.
func (a *AllowedSet) Add(s Source) bool {
	c, err := s.Canonical()
	if err != nil {
		return false
	}
	key := c.Key()
	if _, ok := a.byKey[key]; ok {
		return false
	}
	a.byKey[key] = len(a.order)
	a.order = append(a.order, c)
	return true
}

func (a *AllowedSet) Len() int { return len(a.order) }

func (a *AllowedSet) Sources() []Source {
	return append([]Source(nil), a.order...)
}

func (a *AllowedSet) First() []Source {
	if len(a.order) == 0 {
		return nil
	}
	return []Source{a.order[0]}
}

func (a *AllowedSet) Contains(s Source) bool {
	c, err := s.Canonical()
	if err != nil {
		return false
	}
	_, ok := a.byKey[c.Key()]
	return ok
}

// Filter keeps the cited sources present in the set, replacing each by
// the set's own copy and dropping duplicates.
func (a *AllowedSet) Filter(in []Source) []Source {
	out := make([]Source, 0, len(in))
	seen := map[string]bool{}
	for _, s := range in {
		c, err := s.Canonical()
		if err != nil {
			continue
		}
		key := c.Key()
		i, ok := a.byKey[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a.order[i])
	}
	return out
}

// FilterOrFirst is Filter falling back to the first allowed source.
func (a *AllowedSet) FilterOrFirst(in []Source) []Source {
	if out := a.Filter(in); len(out) > 0 {
		return out
	}
	return a.First()
}

// SourcesOf collects every source cited by turns, in order.
func SourcesOf(turns []Turn) []Source {
	var out []Source
	for _, t := range turns {
		out = append(out, t.Sources...)
	}
	return out
}
