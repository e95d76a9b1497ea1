package signal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"roboswarm/internal/logging"
)

// patternPack is the on-disk shape of .roboswarm/patterns.yaml.
type patternPack struct {
	Patterns []PatternDef `yaml:"patterns"`
}

// LoadPatternPack reads a YAML pattern pack and registers every definition on
// the catalog through the same validation path as runtime registration. A
// missing file is not an error. The first invalid definition aborts the load;
// definitions before it stay registered.
func (c *Catalog) LoadPatternPack(path string) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read pattern pack: %w", err)
	}

	var pack patternPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return 0, fmt.Errorf("parse pattern pack %s: %w", path, err)
	}

	loaded := 0
	for i, def := range pack.Patterns {
		if err := c.AddPattern(def); err != nil {
			return loaded, fmt.Errorf("pattern pack %s entry %d: %w", path, i, err)
		}
		loaded++
	}
	logging.Detect("catalog: loaded %d custom patterns from %s", loaded, path)
	return loaded, nil
}
