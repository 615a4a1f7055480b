package registry

import (
	"github.com/go-viper/mapstructure/v2"
)

const configurationTagNameConstant = "mapstructure"

// DecodeConfiguration fills target from a resolved task configuration,
// coercing scalar types the way the application configuration loader does.
func DecodeConfiguration(configuration map[string]any, target any) error {
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          configurationTagNameConstant,
		Result:           target,
		WeaklyTypedInput: true,
	})
	if decoderError != nil {
		return decoderError
	}
	return decoder.Decode(configuration)
}
