// main.go - Application entrypoint
package main

import "github.com/valpere/mvt_overlay/cmd"

func main() {
	cmd.Execute()
}
