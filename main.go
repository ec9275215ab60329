package main

import "github.com/mangue-baja/telemetry-service-go/cmd"

func main() {
	cmd.Execute()
}
