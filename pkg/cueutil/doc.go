// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates user documents against an embedded CUE schema
// and decodes them into Go values.
//
// Both the matrix file loader and the runtime configuration use the same
// flow: compile the schema, unify it with the user document, validate the
// result and decode it.
//
//	//go:embed matrix_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[matrixFile](schema, data, "#Matrix",
//	    cueutil.WithFilename("matrix.cue"))
//	if err != nil {
//	    return nil, err
//	}
//	return res.Value, nil
package cueutil
