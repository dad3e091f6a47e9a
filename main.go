package main

import "anki-sync/cmd"

func main() {
	cmd.Execute()
}
