// SPDX-License-Identifier: MPL-2.0

// Package issue turns failures into messages a user can act on: an
// ActionableError says what was attempted, on what, and what to try next,
// and an Issue is a longer Markdown explanation rendered in the terminal.
package issue
