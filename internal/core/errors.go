package core

import "fmt"

// ClassificationFault reports an unexpected failure while classifying a message.
type ClassificationFault struct {
	Cause error
}

func (f *ClassificationFault) Error() string {
	return fmt.Sprintf("classification fault: %v", f.Cause)
}

func (f *ClassificationFault) Unwrap() error { return f.Cause }

// CompositionFault reports a failure while building a reply, e.g. an unknown level.
type CompositionFault struct {
	Level Level
	Cause error
}

func (f *CompositionFault) Error() string {
	return fmt.Sprintf("composition fault (level=%q): %v", f.Level, f.Cause)
}

func (f *CompositionFault) Unwrap() error { return f.Cause }
