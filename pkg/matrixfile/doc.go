// SPDX-License-Identifier: MPL-2.0

// Package matrixfile loads a build matrix from a file.
//
// The same document shape is accepted in CUE, YAML, TOML and HCL:
//
//	policy:   { post_summary: true }
//	variants: [
//	  { name: "stable", node_type: "linux", packages: ["python=3.11"],
//	    test: ["pytest --junitxml=report.xml"], test_reports: ["report.xml"],
//	    unstable_threshold: 1, failure_threshold: 6 },
//	  { name: "dev", extends: "stable", packages: ["python=3.13"] },
//	]
//
// A variant that names another one in extends starts from a deep copy of
// that variant; every field it sets replaces the copied value, except
// env_vars, which are appended. A variant with axes is a template that
// expands into one variant per combination of axis values. Variants marked
// abstract are only used as bases and are not returned.
package matrixfile
