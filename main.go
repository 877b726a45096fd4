package main

import "github.com/metrocheck/crb-service/cmd"

func main() {
	cmd.Execute()
}
