/*
	Copyright 2026 SolarView contributors
*/

package main

import "github.com/solarview/telemetry-core-go/cmd"

func main() {
	cmd.Execute()
}
