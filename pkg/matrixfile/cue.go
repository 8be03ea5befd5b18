// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	_ "embed"
	"fmt"

	"github.com/invowk/buildmatrix/pkg/cueutil"
)

//go:embed matrix_schema.cue
var matrixSchema []byte

func decodeCUE(data []byte, filename string) (*document, error) {
	res, err := cueutil.ParseAndDecode[document](matrixSchema, data, "#Matrix", cueutil.WithFilename(filename))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return res.Value, nil
}
