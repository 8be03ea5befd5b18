// SPDX-License-Identifier: MPL-2.0

package testreport

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrNotJUnit is returned for XML documents whose root is neither
// <testsuites> nor <testsuite>.
var ErrNotJUnit = errors.New("not a JUnit report")

type (
	// Counts are the totals of one or more reports.
	Counts struct {
		Tests    int `json:"tests"`
		Failures int `json:"failures"`
		Errors   int `json:"errors"`
		Skipped  int `json:"skipped"`
	}

	suiteXML struct {
		XMLName  xml.Name
		Tests    string        `xml:"tests,attr"`
		Failures string        `xml:"failures,attr"`
		Errors   string        `xml:"errors,attr"`
		Skipped  string        `xml:"skipped,attr"`
		Suites   []suiteXML    `xml:"testsuite"`
		Cases    []testcaseXML `xml:"testcase"`
	}

	testcaseXML struct {
		Failures []struct{} `xml:"failure"`
		Errors   []struct{} `xml:"error"`
		Skipped  *struct{}  `xml:"skipped"`
	}
)

// Add returns the element-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Tests:    c.Tests + o.Tests,
		Failures: c.Failures + o.Failures,
		Errors:   c.Errors + o.Errors,
		Skipped:  c.Skipped + o.Skipped,
	}
}

// Parse reads one JUnit document. Attribute totals are preferred; when an
// attribute is missing or malformed the value is counted from the children.
func Parse(r io.Reader) (Counts, error) {
	var root suiteXML
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return Counts{}, fmt.Errorf("failed to decode JUnit XML: %w", err)
	}
	switch root.XMLName.Local {
	case "testsuites", "testsuite":
	default:
		return Counts{}, fmt.Errorf("%w: root element <%s>", ErrNotJUnit, root.XMLName.Local)
	}
	return root.counts(), nil
}

// ParseFile parses the report at path.
func ParseFile(path string) (Counts, error) {
	f, err := os.Open(path)
	if err != nil {
		return Counts{}, err
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return Counts{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (s suiteXML) counts() Counts {
	var children Counts
	for _, sub := range s.Suites {
		children = children.Add(sub.counts())
	}
	for _, tc := range s.Cases {
		children.Tests++
		children.Failures += len(tc.Failures)
		children.Errors += len(tc.Errors)
		if tc.Skipped != nil {
			children.Skipped++
		}
	}
	return Counts{
		Tests:    attrOr(s.Tests, children.Tests),
		Failures: attrOr(s.Failures, children.Failures),
		Errors:   attrOr(s.Errors, children.Errors),
		Skipped:  attrOr(s.Skipped, children.Skipped),
	}
}

func attrOr(attr string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(attr))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
