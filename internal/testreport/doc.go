// SPDX-License-Identifier: MPL-2.0

// Package testreport reads JUnit XML reports produced by test commands and
// turns them, together with the commands' exit codes, into the failure and
// error counts a variant is judged by.
package testreport
