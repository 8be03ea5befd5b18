// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"bytes"
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

func decodeYAML(data []byte, filename string) (*document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, decodeError(filename, err)
	}
	return &doc, nil
}
