// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

func decodeHCL(data []byte, filename string) (*document, error) {
	file, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, decodeError(filename, diags)
	}

	var doc document
	if diags := gohcl.DecodeBody(file.Body, nil, &doc); diags.HasErrors() {
		return nil, decodeError(filename, diags)
	}
	return &doc, nil
}
