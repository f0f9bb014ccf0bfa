// Command docvault runs the document vault HTTP server.
//
// All lifecycle phases (config loading, MongoDB and blob storage setup,
// schema checks, background jobs, HTTP serving, graceful shutdown) are
// driven by WAFFLE through the hooks defined in internal/app/bootstrap.
package main

import (
	"context"

	"github.com/dalemusser/waffle/app"

	"github.com/docvault/docvault/internal/app/bootstrap"
)

func main() {
	app.Run(context.Background(), bootstrap.Hooks)
}
