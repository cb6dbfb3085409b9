package main

import "github.com/msigvault/msig/cmd"

func main() {
	cmd.Execute()
}
