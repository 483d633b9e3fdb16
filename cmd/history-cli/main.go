package main

import (
	"os"

	"automarket-backend/cmd/history-cli/cmd"
)

func main() {
	cmd.BaseUrl = os.Getenv("HISTORY_BASE_URL")
	cmd.AccessToken = os.Getenv("HISTORY_ACCESS_TOKEN")

	cmd.Execute()
}
