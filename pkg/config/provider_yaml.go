package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file. The file is
// read once and cached.
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}

	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config := &ConfigData{}
	if err := yaml.UnmarshalStrict(cfgFile, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// GetPipelineConfig returns the pipeline settings
func (y *YAMLProvider) GetPipelineConfig() (*PipelineData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Pipeline, nil
}

// GetReadingTypes returns the configured reading types
func (y *YAMLProvider) GetReadingTypes() ([]ReadingTypeData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.ReadingTypes, nil
}

// GetStorageConfig returns storage configuration from YAML
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Storage, nil
}

// GetControllers returns controller configurations from YAML
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.Controllers, nil
}

// IsReadOnly returns true since YAML files are read-only in this implementation
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
