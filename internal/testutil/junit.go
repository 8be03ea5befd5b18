// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"strings"
)

// JUnitSuite renders a <testsuite> with tests cases, of which the first
// failures fail and the next errors error. The counts are written both as
// attributes and as child elements.
func JUnitSuite(name string, tests, failures, errors int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<testsuite name=%q tests=\"%d\" failures=\"%d\" errors=\"%d\">\n", name, tests, failures, errors)
	for i := range tests {
		fmt.Fprintf(&b, "  <testcase classname=%q name=\"case%d\">", name, i)
		switch {
		case i < failures:
			b.WriteString(`<failure message="assertion failed">boom</failure>`)
		case i < failures+errors:
			b.WriteString(`<error message="exception">boom</error>`)
		}
		b.WriteString("</testcase>\n")
	}
	b.WriteString("</testsuite>\n")
	return b.String()
}

// JUnitSuites wraps suites in a <testsuites> root.
func JUnitSuites(suites ...string) string {
	return "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<testsuites>\n" + strings.Join(suites, "") + "</testsuites>\n"
}
