package ingest

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/shivortex/lead-scraper/internal/collect"
)

// SeedSpec is one entry of a seeds file: the collector name plus the seed
// fields inline.
//
//	seeds:
//	  - collector: places
//	    category: plumbers
//	    city: Pune
//	  - collector: file
//	    url: ftp://data.example.com/exports/leads.csv
type SeedSpec struct {
	Collector    string `yaml:"collector"`
	collect.Seed `yaml:",inline"`
}

type seedsFile struct {
	Seeds []SeedSpec `yaml:"seeds"`
}

// LoadSeeds reads a YAML seeds file.
func LoadSeeds(path string) ([]SeedSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read seeds %s", path)
	}
	return ParseSeeds(data)
}

// ParseSeeds decodes a YAML seeds document. Every entry must name a
// collector.
func ParseSeeds(data []byte) ([]SeedSpec, error) {
	var f seedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "ingest: parse seeds")
	}
	for i := range f.Seeds {
		f.Seeds[i].Collector = strings.TrimSpace(f.Seeds[i].Collector)
		if f.Seeds[i].Collector == "" {
			return nil, eris.Errorf("ingest: seed %d has no collector", i+1)
		}
	}
	return f.Seeds, nil
}

// Jobs resolves seed specs against the registry, preserving order.
func Jobs(reg *collect.Registry, specs []SeedSpec) ([]Job, error) {
	jobs := make([]Job, 0, len(specs))
	for i, s := range specs {
		c, err := reg.Get(s.Collector)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: seed %d", i+1)
		}
		jobs = append(jobs, Job{Collector: c, Seed: s.Seed})
	}
	return jobs, nil
}
