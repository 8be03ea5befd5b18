// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/invowk/buildmatrix/cmd/buildmatrix"

func main() {
	cmd.Execute()
}
