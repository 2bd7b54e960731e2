package main

import "samco-studio/cmd"

func main() {
	cmd.Execute()
}
