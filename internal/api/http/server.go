package http

import "github.com/gofiber/fiber/v2"

// NewApp builds the fiber application with the JSON error renderer.
func NewApp(name string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               name,
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})
}
