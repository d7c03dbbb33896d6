package main

import (
	"newsdesk/cmd/handlers"
	"newsdesk/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
