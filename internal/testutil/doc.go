// SPDX-License-Identifier: MPL-2.0

// Package testutil holds helpers shared by package tests: Must* wrappers
// that fail the test on filesystem errors, a JUnit report builder for
// feeding the report parser and the executor, and a semaphore limiting
// concurrent container tests.
package testutil
