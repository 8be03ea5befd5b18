// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

// Catalogued issues.
const (
	MatrixFileNotFoundId Id = iota + 1
	MatrixFileInvalidId
	ConfigLoadFailedId
	RuntimeUnavailableId
	CheckoutFailedId
	ReportPublishFailedId
)

type (
	// Id identifies a catalogued issue.
	Id int

	MarkdownMsg string

	// Issue is a Markdown explanation of a known failure.
	Issue struct {
		id    Id
		mdMsg MarkdownMsg
	}
)

var (
	render = glamour.Render

	issues = map[Id]*Issue{
		MatrixFileNotFoundId: {
			id: MatrixFileNotFoundId,
			mdMsg: `
# Matrix file not found

buildmatrix needs a matrix file describing the variants to build.

## Things you can try
- Pass the path explicitly: ` + "`buildmatrix run ./matrix.cue`" + `
- Supported extensions are .cue, .yaml, .yml, .toml and .hcl`,
		},
		MatrixFileInvalidId: {
			id: MatrixFileInvalidId,
			mdMsg: `
# Invalid matrix file

The matrix file could not be decoded or one of its variants is invalid.
Nothing was built.

## Things you can try
- Run ` + "`buildmatrix validate <file>`" + ` to list every problem
- Check that each variant name is unique, including expanded axis cells
- Make sure failure_threshold is not lower than unstable_threshold
- Check that every extends target exists and no variant extends itself`,
		},
		ConfigLoadFailedId: {
			id: ConfigLoadFailedId,
			mdMsg: `
# Failed to load configuration

## Things you can try
- Inspect the effective settings with ` + "`buildmatrix config show`" + `
- Check the CUE syntax of your config.cue
- Remove unknown keys; the configuration schema is closed`,
		},
		RuntimeUnavailableId: {
			id: RuntimeUnavailableId,
			mdMsg: `
# Runtime not available

The selected runtime cannot provision execution contexts on this host.

## Things you can try
- For the container runtime, make sure Docker or Podman is running
- Switch runtimes with ` + "`--runtime virtual`" + ` or ` + "`--runtime native`",
		},
		CheckoutFailedId: {
			id: CheckoutFailedId,
			mdMsg: `
# Checkout failed

The sources could not be fetched, so no variant was dispatched.

## Things you can try
- Verify checkout.repository and checkout.ref in your configuration
- Delete the checkout cache directory and retry`,
		},
		ReportPublishFailedId: {
			id: ReportPublishFailedId,
			mdMsg: `
# Summary could not be published

The build finished and its status is final, but at least one reporter
failed to publish the summary.

## Things you can try
- Check that report.dir is writable
- Verify the object store endpoint, bucket and credentials`,
		},
	}
)

func (i *Issue) Id() Id { return i.id }

func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// Render formats the issue for the terminal with the given glamour style
// ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

// Values returns every catalogued issue ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

// Get returns the issue for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
