// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/openchami/image-builder/cmd/image-builder"

func main() {
	cmd.Execute()
}
