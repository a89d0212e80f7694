package portal

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var builtinProfiles []byte

// Profile describes one county portal. It is immutable once loaded.
type Profile struct {
	County        string  `yaml:"county"`
	BaseURL       string  `yaml:"base_url"`
	Version       Version `yaml:"version"`
	Banner        string  `yaml:"banner"`
	CalendarLabel string  `yaml:"calendar_label"`
	Location      string  `yaml:"location"`
	Notes         string  `yaml:"notes,omitempty"`
}

func (p *Profile) validate() error {
	if p.County == "" {
		return fmt.Errorf("profile without county")
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("profile %s: base_url %q must be an absolute url", p.County, p.BaseURL)
	}
	if p.Version == VersionUnknown {
		return fmt.Errorf("profile %s: missing version", p.County)
	}
	if p.Banner == "" {
		return fmt.Errorf("profile %s: missing banner", p.County)
	}
	if p.CalendarLabel == "" {
		return fmt.Errorf("profile %s: missing calendar_label", p.County)
	}
	return nil
}

type profileFile struct {
	Profiles []*Profile `yaml:"profiles"`
}

// Registry maps county names to portal profiles
type Registry struct {
	profiles map[string]*Profile
}

// LoadRegistry reads the built-in profiles and, when path is set, overlays
// the profiles in that file. Entries for the same county replace built-ins.
func LoadRegistry(path string) (*Registry, error) {
	r := &Registry{profiles: make(map[string]*Profile)}
	if err := r.add(builtinProfiles); err != nil {
		return nil, fmt.Errorf("built-in profiles: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read profiles file: %w", err)
		}
		if err := r.add(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return r, nil
}

func (r *Registry) add(data []byte) error {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse profiles: %w", err)
	}
	for _, p := range f.Profiles {
		p.County = normalizeCounty(p.County)
		if err := p.validate(); err != nil {
			return err
		}
		r.profiles[p.County] = p
	}
	return nil
}

// Lookup returns the profile for county, matched case-insensitively
func (r *Registry) Lookup(county string) (*Profile, error) {
	p, ok := r.profiles[normalizeCounty(county)]
	if !ok {
		return nil, fmt.Errorf("no Odyssey portal known for county %q", county)
	}
	return p, nil
}

// Profiles returns every profile ordered by county
func (r *Registry) Profiles() []*Profile {
	out := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].County < out[j].County })
	return out
}

// normalizeCounty turns "Hays County" or " HAYS " into "hays"
func normalizeCounty(county string) string {
	c := strings.ToLower(strings.TrimSpace(county))
	c = strings.TrimSuffix(c, " county")
	return strings.Join(strings.Fields(c), "_")
}
