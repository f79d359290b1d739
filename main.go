package main

import "github.com/bloodmagesoftware/blender-envmap/cmd"

func main() {
	cmd.Execute()
}
