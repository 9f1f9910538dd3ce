// Command veto is the decision core's CLI: load and normalize rule files,
// run test cases against them, simulate a single decision, diff two rule
// sets, or publish a signed bundle (spec §6).
package main

import "github.com/vetoguard/veto/cmd/veto/cmd"

func main() {
	cmd.Execute()
}
