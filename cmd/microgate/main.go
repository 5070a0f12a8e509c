package main

import "github.com/vietddude/microgate/internal/cli"

func main() {
	cli.Execute()
}
