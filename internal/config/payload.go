package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FromPayload rebuilds a configuration from a CONFIG record payload, as
// returned by engine.ReadHeader. Keys the configuration does not know are
// ignored; settings the payload lacks keep their defaults.
func FromPayload(m map[string]any, seed uint64) (Config, error) {
	known := Default().Payload()
	doc := make(map[string]any, len(known))
	for k, v := range m {
		if _, ok := known[k]; !ok {
			continue
		}
		if n, ok := v.(json.Number); ok {
			i, err := n.Int64()
			if err != nil {
				return Config{}, fmt.Errorf("config payload %s: %w", k, err)
			}
			v = i
		}
		doc[k] = v
	}

	cfg := Default()
	if len(doc) > 0 {
		data, err := yaml.Marshal(doc)
		if err != nil {
			return Config{}, fmt.Errorf("config payload: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return Config{}, fmt.Errorf("config payload: %w", err)
		}
	}
	cfg.Seed = seed
	return cfg, nil
}
