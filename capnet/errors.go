package capnet

import (
	"bytes"
	"fmt"
)

// ShapeMismatchError is returned when an input or a checkpoint does not fit the configured shapes.
type ShapeMismatchError struct {
	What      string
	Want, Got interface{}
}

func (err ShapeMismatchError) Error() string {
	return fmt.Sprintf("Shape mismatch in %s: expected %v, got %v", err.What, err.Want, err.Got)
}

type manyErr []error

func (err manyErr) Error() string {
	var buf bytes.Buffer
	for _, e := range err {
		fmt.Fprintln(&buf, e.Error())
	}
	return buf.String()
}
