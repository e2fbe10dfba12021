// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/jadnohra/tapkit/cmd/tapkit"

func main() {
	cmd.Execute()
}
