// SPDX-License-Identifier: MPL-2.0

// Package install resolves a variant's channels and packages into a package
// manager command and runs it inside the variant's execution context,
// retrying transient failures with exponential backoff.
package install
