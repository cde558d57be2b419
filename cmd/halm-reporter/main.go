// Package main provides the halm-reporter CLI for publishing CI build results
// to Helix ALM.
package main

import "github.com/halmci/halm-reporter/cmd/halm-reporter/commands"

func main() {
	commands.Execute(Version)
}
