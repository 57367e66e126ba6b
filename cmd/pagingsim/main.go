// Command pagingsim runs workloads on the simulated memory subsystem.
package main

import "github.com/sarchlab/pagingsim/cmd/pagingsim/cmd"

func main() {
	cmd.Execute()
}
