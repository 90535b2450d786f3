package main

import "chatview/cmd"

func main() {
	cmd.Execute()
}
