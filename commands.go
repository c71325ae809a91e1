package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"medbook/pkg/database"
	"medbook/pkg/slots"
)

func newMigrateCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции базы данных",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if list {
				migrations, err := database.ListMigrations(cfg.Postgres.MigrationsDir, logger)
				if err != nil {
					return err
				}
				for _, m := range migrations {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.Version, m.Name)
				}
				return nil
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			db, err := database.NewPostgresDB(ctx, cfg.Postgres)
			if err != nil {
				logger.Error("Не удалось подключиться к БД", zap.Error(err))
				return err
			}
			defer db.Close()

			if err := database.RunMigrations(ctx, db, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Error("Ошибка при выполнении миграций", zap.Error(err))
				return err
			}

			logger.Info("Миграции успешно выполнены")
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "только показать файлы миграций")

	return cmd
}

// newSlotsCmd печатает метки времени для окна приема без обращения к БД.
func newSlotsCmd() *cobra.Command {
	var booked []string

	cmd := &cobra.Command{
		Use:     "slots START END DURATION",
		Short:   "Рассчитать метки времени окна приема",
		Example: "medbook slots 09:00 12:00 30 --booked 09:30",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			duration, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("длительность должна быть числом: %w", err)
			}

			labels, err := slots.Generate(args[0], args[1], duration)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			summary := slots.Stats(labels, booked)

			fmt.Fprintf(out, "метки:     %s\n", strings.Join(labels, " "))
			fmt.Fprintf(out, "свободно:  %s\n", strings.Join(slots.Available(labels, booked), " "))
			fmt.Fprintf(out, "всего %d, занято %d (%.1f%%), свободно %d\n",
				summary.Total, summary.Booked, summary.BookedPercent, summary.Available)

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&booked, "booked", nil, "занятые метки через запятую")

	return cmd
}
