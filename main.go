package main

import "github.com/shouni/go-web-bundle/cmd"

func main() {
	cmd.Execute()
}
