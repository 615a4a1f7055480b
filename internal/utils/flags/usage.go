package flags

import (
	"fmt"
	"strings"
)

const choiceUsageTemplateConstant = "%s (one of: %s)"

// FormatChoiceUsage appends the accepted values to a flag usage description.
func FormatChoiceUsage(usage string, choices ...string) string {
	cleanedChoices := make([]string, 0, len(choices))
	for _, choice := range choices {
		trimmedChoice := strings.TrimSpace(choice)
		if len(trimmedChoice) == 0 {
			continue
		}
		cleanedChoices = append(cleanedChoices, trimmedChoice)
	}

	if len(cleanedChoices) == 0 {
		return usage
	}

	return fmt.Sprintf(choiceUsageTemplateConstant, usage, strings.Join(cleanedChoices, ", "))
}
