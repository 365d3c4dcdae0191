package main

import "github.com/Bhaumik-Tandan/Ai-agent-gateway/cmd/aegis/cmd"

func main() {
	cmd.Execute()
}
