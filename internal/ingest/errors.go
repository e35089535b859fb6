package ingest

import (
	"errors"
	"fmt"
)

// ErrHeaderNotFound means a file carried no detectable header row. The file
// is skipped and counted; the batch continues.
var ErrHeaderNotFound = errors.New("header row not found")

// SchemaError means a required column was absent after header normalization.
// The file is skipped and counted; the batch continues.
type SchemaError struct {
	File   string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("required column %q missing in %s", e.Column, e.File)
}
