package logging

import "fmt"

// AdapterFactory builds a concrete Adapter from a generic AdapterConfig,
// the way options arrive from YAML/env configuration.
type AdapterFactory struct{}

func NewAdapterFactory() *AdapterFactory {
	return &AdapterFactory{}
}

func (f *AdapterFactory) CreateAdapter(cfg AdapterConfig) (Adapter, error) {
	switch cfg.Type {
	case "stdout":
		format := getStringOption(cfg.Options, "format", "json")
		return NewStdoutAdapter(cfg.Name, format), nil
	case "file":
		path := getStringOption(cfg.Options, "file_path", "")
		if path == "" {
			return nil, fmt.Errorf("file adapter %q requires file_path", cfg.Name)
		}
		return NewFileAdapter(cfg.Name, path)
	default:
		return nil, fmt.Errorf("unsupported adapter type: %s", cfg.Type)
	}
}

func getStringOption(options map[string]interface{}, key, def string) string {
	if options == nil {
		return def
	}
	if v, ok := options[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}
