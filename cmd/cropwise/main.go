package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess         = 0 // Command completed
	ExitTrainingAborted = 1 // Dataset rejected before any artifact was written
	ExitError           = 2 // Configuration or runtime error
)

// TrainingAbortedError indicates that training stopped because the dataset
// failed its schema or size checks. No artifacts were written.
type TrainingAbortedError struct {
	Message string
	Err     error
}

func (e *TrainingAbortedError) Error() string {
	return e.Message
}

func (e *TrainingAbortedError) Unwrap() error {
	return e.Err
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var aborted *TrainingAbortedError
	if errors.As(err, &aborted) {
		return ExitTrainingAborted
	}
	return ExitError
}
