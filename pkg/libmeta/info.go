package libmeta

// Info is the typed subset of library properties plcpack cares about.
type Info struct {
	Name        string
	Title       string
	Description string
	Author      string
	Company     string
	Version     string
}

// Info extracts the well-known properties. Name falls back from the
// default namespace to the title.
func (p *Properties) Info() Info {
	info := Info{
		Title:       p.Lookup("Title"),
		Description: p.Lookup("Description"),
		Author:      p.Lookup("Author"),
		Company:     p.Lookup("Company"),
		Version:     p.Lookup("Version"),
		Name:        p.Lookup("DefaultNamespace"),
	}
	if info.Name == "" {
		info.Name = info.Title
	}
	return info
}
