package cli

import _ "embed"

//go:embed config/default.yaml
var embeddedDefaultConfigurationContent []byte

// EmbeddedDefaultConfiguration returns the built-in configuration document and its format.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return embeddedDefaultConfigurationContent, configurationTypeConstant
}
