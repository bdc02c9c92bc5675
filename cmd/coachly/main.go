package main

import (
	"coachly/cmd/handlers"
	"coachly/internal/logger"
)

func main() {
	logger.Init("info")
	handlers.Execute()
}
