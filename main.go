package main

import (
	"os"

	"github.com/spf13/cobra"
)

// @title MedBook API
// @version 1.0
// @description API записи на прием к врачам
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@medbook.local

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	root := &cobra.Command{
		Use:           "medbook",
		Short:         "Сервис записи на прием к врачам",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          serve.RunE,
	}

	root.AddCommand(serve, newMigrateCmd(), newSlotsCmd())

	return root
}
