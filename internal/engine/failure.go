package engine

import (
	"errors"
	"fmt"
)

const (
	taskFailureMessageTemplateConstant      = "task %s failed"
	multipleFailuresSummaryTemplateConstant = "%s (and %d more failures)"
)

type taskFailureError struct {
	taskIdentifier string
	message        string
	cause          error
}

func (failure *taskFailureError) Error() string {
	if failure.cause == nil {
		return failure.message
	}
	return fmt.Sprintf("%s: %v", failure.message, failure.cause)
}

func (failure *taskFailureError) Unwrap() error {
	return failure.cause
}

func newTaskFailureError(taskIdentifier string, cause error) *taskFailureError {
	return &taskFailureError{
		taskIdentifier: taskIdentifier,
		message:        fmt.Sprintf(taskFailureMessageTemplateConstant, taskIdentifier),
		cause:          cause,
	}
}

// taskFailuresFrom flattens an aggregate error into the outcome's failure
// list, carrying each task failure wrapper's attribution through.
func taskFailuresFrom(aggregateError error) []TaskFailure {
	leafErrors := collectTaskErrors(aggregateError)
	if len(leafErrors) == 0 {
		return nil
	}

	failures := make([]TaskFailure, 0, len(leafErrors))
	for _, leafError := range leafErrors {
		failure := TaskFailure{Message: leafError.Error()}
		var attributedFailure *taskFailureError
		if errors.As(leafError, &attributedFailure) {
			failure.TaskIdentifier = attributedFailure.taskIdentifier
		}
		failures = append(failures, failure)
	}
	return failures
}

// collectTaskErrors flattens joined error trees into their leaves. Task
// failure wrappers are kept whole so their task attribution survives.
func collectTaskErrors(candidate error) []error {
	if candidate == nil {
		return nil
	}

	type multiUnwrapper interface{ Unwrap() []error }
	type singleUnwrapper interface{ Unwrap() error }

	if _, isTaskFailure := candidate.(*taskFailureError); isTaskFailure {
		return []error{candidate}
	}

	if multi, isMulti := candidate.(multiUnwrapper); isMulti {
		children := multi.Unwrap()
		collected := make([]error, 0, len(children))
		for _, child := range children {
			collected = append(collected, collectTaskErrors(child)...)
		}
		return collected
	}

	if single, isSingle := candidate.(singleUnwrapper); isSingle {
		if child := single.Unwrap(); child != nil {
			return collectTaskErrors(child)
		}
	}

	return []error{candidate}
}

// summarizeFailures renders one line describing the run's failures.
func summarizeFailures(failures []TaskFailure) string {
	if len(failures) == 0 {
		return ""
	}
	if len(failures) == 1 {
		return failures[0].Message
	}
	return fmt.Sprintf(multipleFailuresSummaryTemplateConstant, failures[0].Message, len(failures)-1)
}
