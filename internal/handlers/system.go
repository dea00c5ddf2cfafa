package handlers

import (
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
)

var startTime = time.Now()

// HandleHealth reports liveness plus coarse process stats.
func (s *Services) HandleHealth(c *fiber.Ctx) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return c.JSON(fiber.Map{
		"status": "ok",
		"uptime": time.Since(startTime).Round(time.Second).String(),
		"memory": fiber.Map{
			"allocMB":      mem.Alloc / 1024 / 1024,
			"totalAllocMB": mem.TotalAlloc / 1024 / 1024,
			"sysMB":        mem.Sys / 1024 / 1024,
			"numGC":        mem.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	})
}

// HandleDeps reports which external tools were resolved at startup.
func (s *Services) HandleDeps(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"tools": s.Tools.Statuses()})
}
