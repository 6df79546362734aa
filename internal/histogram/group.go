package histogram

// Group is a named collection of histograms and nested groups, used to lay
// out a detector's histograms for display. Groups hold handles only; the
// histograms themselves stay reachable through the flattened table.
type Group struct {
	Name       string
	histograms []Histogram
	groups     []*Group
}

// NewGroup returns an empty group.
func NewGroup(name string) *Group {
	return &Group{Name: name}
}

// Add appends h to the group.
func (g *Group) Add(h Histogram) {
	g.histograms = append(g.histograms, h)
}

// AddGroup nests sub under g.
func (g *Group) AddGroup(sub *Group) {
	g.groups = append(g.groups, sub)
}

// Histograms returns the directly held histograms in insertion order.
func (g *Group) Histograms() []Histogram {
	return append([]Histogram(nil), g.histograms...)
}

// Groups returns the nested groups in insertion order.
func (g *Group) Groups() []*Group {
	return append([]*Group(nil), g.groups...)
}

// Len counts histograms in g and every nested group.
func (g *Group) Len() int {
	n := len(g.histograms)
	for _, sub := range g.groups {
		n += sub.Len()
	}
	return n
}

// Walk visits every histogram depth-first, parents before children, with the
// slash-separated path of the group holding it. Walk stops at the first
// error fn returns.
func (g *Group) Walk(fn func(path string, h Histogram) error) error {
	return g.walk(g.Name, fn)
}

func (g *Group) walk(path string, fn func(string, Histogram) error) error {
	for _, h := range g.histograms {
		if err := fn(path, h); err != nil {
			return err
		}
	}
	for _, sub := range g.groups {
		if err := sub.walk(path+"/"+sub.Name, fn); err != nil {
			return err
		}
	}
	return nil
}
