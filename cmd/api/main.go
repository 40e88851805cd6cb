package main

import (
	"os"
	_ "time/tzdata"

	"github.com/thoriqulumar/kostan-be/internal/cli"
)

// @title                      Kostan API
// @version                    1.0
// @description                Boarding house payments, reminders and live notifications.
// @host                       localhost:8080
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
func main() {
	os.Exit(cli.Execute())
}
