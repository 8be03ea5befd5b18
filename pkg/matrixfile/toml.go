// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

func decodeTOML(data []byte, filename string) (*document, error) {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc document
	if err := dec.Decode(&doc); err != nil {
		var decErr *toml.DecodeError
		if errors.As(err, &decErr) {
			row, col := decErr.Position()
			return nil, decodeError(filename, &positionError{row: row, col: col, err: err})
		}
		return nil, decodeError(filename, err)
	}
	return &doc, nil
}

type positionError struct {
	row, col int
	err      error
}

func (e *positionError) Error() string {
	return fmt.Sprintf("line %d, column %d: %v", e.row, e.col, e.err)
}

func (e *positionError) Unwrap() error { return e.err }
