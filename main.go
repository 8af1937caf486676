package main

import "github.com/rmaulana/iam-service/cmd"

func main() {
	cmd.Execute()
}
