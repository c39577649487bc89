// historium crawls public museum collection APIs into a shared catalog.
package main

import "github.com/edwarddgao/historium/cmd"

func main() {
	cmd.Execute()
}
