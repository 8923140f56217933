package main

import "github.com/ybenkhadda/dockback/cmd"

func main() {
	cmd.Execute()
}
