package flags

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

const (
	toggleFlagTypeNameConstant       = "toggle"
	toggleParseErrorTemplateConstant = "unsupported toggle value %q"
)

type toggleFlagValue struct {
	state  bool
	target *bool
}

func (value *toggleFlagValue) String() string {
	return strconv.FormatBool(value.state)
}

func (value *toggleFlagValue) Set(raw string) error {
	parsedValue, parseError := parseToggleValue(raw)
	if parseError != nil {
		return parseError
	}
	value.state = parsedValue
	if value.target != nil {
		*value.target = parsedValue
	}
	return nil
}

func (value *toggleFlagValue) Type() string {
	return toggleFlagTypeNameConstant
}

func parseToggleValue(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	default:
		return false, fmt.Errorf(toggleParseErrorTemplateConstant, raw)
	}
}

// NormalizeToggleArguments rewrites detached toggle values, turning
// "--dry-run yes" into the "--dry-run=yes" form pflag understands. Other
// arguments pass through unchanged.
func NormalizeToggleArguments(arguments []string) []string {
	if len(arguments) == 0 {
		return nil
	}

	normalizedArguments := make([]string, 0, len(arguments))
	for argumentIndex := 0; argumentIndex < len(arguments); argumentIndex++ {
		currentArgument := arguments[argumentIndex]
		normalizedArguments = append(normalizedArguments, currentArgument)

		if !isToggleFlagArgument(currentArgument) {
			continue
		}

		nextIndex := argumentIndex + 1
		if nextIndex >= len(arguments) {
			continue
		}
		if _, parseError := parseToggleValue(arguments[nextIndex]); parseError != nil {
			continue
		}

		normalizedArguments[len(normalizedArguments)-1] = currentArgument + "=" + arguments[nextIndex]
		argumentIndex = nextIndex
	}

	return normalizedArguments
}

func isToggleFlagArgument(argument string) bool {
	for _, toggleFlagName := range []string{DryRunFlagName, StopOnErrorFlagName} {
		if argument == "--"+toggleFlagName {
			return true
		}
	}
	return false
}

// AddToggleFlag registers a boolean toggle flag accepting extended spellings
// such as yes/no and on/off. A bare flag occurrence enables the toggle.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if flagSet == nil {
		return
	}
	if len(name) == 0 {
		return
	}
	if flagSet.Lookup(name) != nil {
		return
	}

	value := &toggleFlagValue{state: defaultValue, target: target}
	if target != nil {
		*target = defaultValue
	}

	registeredFlag := flagSet.VarPF(value, name, shorthand, usage)
	registeredFlag.NoOptDefVal = strconv.FormatBool(true)
}
