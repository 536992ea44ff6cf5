package main

import "github.com/KaramelBytes/insightgenie/cmd"

func main() {
	cmd.Execute()
}
