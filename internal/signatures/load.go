package signatures

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk override format:
//
//	java:
//	  Wurst: [wurst]
//	bedrock:
//	  Horion: [horion]
type File map[Platform]map[string][]string

// Load reads a signature file. An empty path returns the built-in database.
func Load(path string) (*Database, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signatures: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse signatures %s: %w", path, err)
	}
	if len(f) == 0 {
		return nil, fmt.Errorf("signatures %s: no platforms defined", path)
	}
	for p, table := range f {
		if _, err := ParsePlatform(string(p)); err != nil {
			return nil, fmt.Errorf("signatures %s: %w", path, err)
		}
		for label, kws := range table {
			if len(normalize(kws)) == 0 {
				return nil, fmt.Errorf("signatures %s: %s/%s has no keywords", path, p, label)
			}
		}
	}

	return New(f), nil
}
