// Package utils provides shared configuration, logging, and command context
// helpers used across the genopipe commands.
package utils

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	environmentKeySeparatorConstant           = "_"
	configurationKeySeparatorConstant         = "."
	embeddedConfigurationReadErrorTemplate    = "unable to read embedded configuration: %w"
	explicitConfigurationReadErrorTemplate    = "unable to read configuration file %s: %w"
	searchPathConfigurationReadErrorTemplate  = "unable to read configuration from search paths: %w"
	configurationDecodeErrorTemplateConstant  = "unable to decode configuration: %w"
	configurationTargetMissingMessageConstant = "configuration target must not be nil"
)

// LoadedConfiguration reports metadata about a completed configuration load.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// ConfigurationLoader merges configuration values from defaults, embedded
// content, configuration files, and environment variables. Precedence from
// highest to lowest: environment, explicit file, search path file, embedded
// content, defaults.
type ConfigurationLoader struct {
	configurationName string
	configurationType string
	environmentPrefix string
	searchPaths       []string
	embeddedContent   []byte
	embeddedType      string
}

// NewConfigurationLoader constructs a ConfigurationLoader for the named
// configuration file and environment prefix.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       append([]string{}, searchPaths...),
	}
}

// SetEmbeddedConfiguration registers fallback configuration content consulted
// when no configuration file is found.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(content []byte, configurationType string) {
	loader.embeddedContent = append([]byte{}, content...)
	loader.embeddedType = configurationType
}

// LoadConfiguration resolves configuration values into the provided target
// structure and reports which configuration file, if any, contributed values.
func (loader *ConfigurationLoader) LoadConfiguration(explicitConfigurationPath string, defaultValues map[string]any, target any) (LoadedConfiguration, error) {
	if target == nil {
		return LoadedConfiguration{}, errors.New(configurationTargetMissingMessageConstant)
	}

	viperInstance := viper.New()
	viperInstance.SetConfigName(loader.configurationName)
	viperInstance.SetConfigType(loader.configurationType)
	viperInstance.SetEnvPrefix(loader.environmentPrefix)
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(configurationKeySeparatorConstant, environmentKeySeparatorConstant))
	viperInstance.AutomaticEnv()

	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	if len(loader.embeddedContent) > 0 {
		embeddedType := loader.embeddedType
		if len(embeddedType) == 0 {
			embeddedType = loader.configurationType
		}
		viperInstance.SetConfigType(embeddedType)
		if readError := viperInstance.ReadConfig(bytes.NewReader(loader.embeddedContent)); readError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationReadErrorTemplate, readError)
		}
		viperInstance.SetConfigType(loader.configurationType)
	}

	configurationFileUsed := ""
	trimmedExplicitPath := strings.TrimSpace(explicitConfigurationPath)
	if len(trimmedExplicitPath) > 0 {
		viperInstance.SetConfigFile(trimmedExplicitPath)
		if mergeError := viperInstance.MergeInConfig(); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(explicitConfigurationReadErrorTemplate, trimmedExplicitPath, mergeError)
		}
		configurationFileUsed = trimmedExplicitPath
	} else {
		for _, searchPath := range loader.searchPaths {
			viperInstance.AddConfigPath(searchPath)
		}
		mergeError := viperInstance.MergeInConfig()
		switch {
		case mergeError == nil:
			configurationFileUsed = viperInstance.ConfigFileUsed()
		case isConfigurationFileNotFound(mergeError):
		default:
			return LoadedConfiguration{}, fmt.Errorf(searchPathConfigurationReadErrorTemplate, mergeError)
		}
	}

	decodeError := viperInstance.Unmarshal(target, func(decoderConfiguration *mapstructure.DecoderConfig) {
		decoderConfiguration.WeaklyTypedInput = true
	})
	if decodeError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplateConstant, decodeError)
	}

	return LoadedConfiguration{ConfigFileUsed: configurationFileUsed}, nil
}

func isConfigurationFileNotFound(candidateError error) bool {
	var notFoundError viper.ConfigFileNotFoundError
	return errors.As(candidateError, &notFoundError)
}
