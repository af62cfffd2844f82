package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	uber_config "go.uber.org/config"
	"go.uber.org/fx"
)

const (
	_configDirEnv     = "GQLSP_CONFIG_DIR"
	_defaultConfigDir = "src/gqlsp/config"
)

// ConfigModule provides the merged configuration.
var ConfigModule = fx.Options(
	fx.Provide(NewConfig),
)

// Overrides holds values that take precedence over every configuration file, such as command line flags.
// Keys are dotted paths, e.g. "jsonrpc.transport".
type Overrides map[string]interface{}

// ConfigParams are inbound parameters for NewConfig.
type ConfigParams struct {
	fx.In

	Overrides Overrides `optional:"true"`
}

// Config wraps the YAML provider built from the files listed in meta.yaml.
type Config struct {
	provider uber_config.Provider
}

// Get returns the value at the given dotted path.
func (c Config) Get(path string) uber_config.Value {
	return c.provider.Get(path)
}

// Name returns the provider name.
func (c Config) Name() string {
	return "config"
}

// NewConfig loads meta.yaml from the config directory, then merges every listed file that exists, in order.
func NewConfig(p ConfigParams) (uber_config.Provider, error) {
	configDir := getConfigDir()

	metaProvider, err := uber_config.NewYAML(
		uber_config.File(filepath.Join(configDir, "meta.yaml")),
		uber_config.Expand(os.LookupEnv),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load meta configuration: %w", err)
	}

	var configFiles []string
	if err := metaProvider.Get("files").Populate(&configFiles); err != nil {
		return nil, fmt.Errorf("failed to read files list from meta.yaml: %w", err)
	}

	var options []uber_config.YAMLOption
	for _, file := range configFiles {
		fullPath := filepath.Join(configDir, file)
		if _, err := os.Stat(fullPath); err == nil {
			options = append(options, uber_config.File(fullPath))
		}
	}

	if len(options) == 0 {
		return nil, fmt.Errorf("no configuration files found in %s", configDir)
	}

	if len(p.Overrides) > 0 {
		options = append(options, uber_config.Static(p.Overrides.tree()))
	}
	options = append(options, uber_config.Expand(os.LookupEnv))

	provider, err := uber_config.NewYAML(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return Config{provider: provider}, nil
}

// tree expands dotted keys into nested maps so they merge with the YAML files.
func (o Overrides) tree() map[string]interface{} {
	root := make(map[string]interface{})
	for key, value := range o {
		node := root
		parts := strings.Split(key, ".")
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]interface{})
			if !ok {
				child = make(map[string]interface{})
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}
	return root
}

func getConfigDir() string {
	if configDir := os.Getenv(_configDirEnv); configDir != "" {
		return configDir
	}

	// Assumes the binary is run from the repository root.
	return _defaultConfigDir
}
