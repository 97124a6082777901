/*
main.go

borgmatic-exporter publishes borgmatic repository statistics for Prometheus.
*/
package main

import (
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/cmd"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/logger"
)

func main() {
	logger.InitFallback()
	cmd.Execute()
}
