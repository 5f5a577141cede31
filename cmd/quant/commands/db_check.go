package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/b3factor/backend/pkg/config"
	"github.com/wonny/b3factor/backend/pkg/database"
)

// dbCheckCmd represents the db-check command
var dbCheckCmd = &cobra.Command{
	Use:   "db-check",
	Short: "Test the PostgreSQL connection",
	Long: `Connects to DATABASE_URL, pings it and prints the pool statistics.

Example:
  go run ./cmd/quant db-check`,
	RunE: runDBCheck,
}

func init() {
	rootCmd.AddCommand(dbCheckCmd)
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	PrintHeader("Database Connection Test", "")
	PrintKeyValue("ENV", cfg.Env, 14)
	PrintKeyValue("Database URL", maskPassword(cfg.Database.URL), 14)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg)
	if err != nil {
		PrintError(err.Error())
		return err
	}
	defer db.Close()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		PrintError(fmt.Sprintf("health check failed: %v", err))
		return err
	}

	fmt.Println("\n📊 Connection Pool Statistics:")
	PrintKeyValue("Response Time", status.ResponseTime.String(), 22)
	PrintKeyValue("Max Connections", fmt.Sprintf("%d", status.MaxConns), 22)
	PrintKeyValue("Total Connections", fmt.Sprintf("%d", status.TotalConns), 22)
	PrintKeyValue("Idle Connections", fmt.Sprintf("%d", status.IdleConns), 22)
	PrintKeyValue("Acquire Count", fmt.Sprintf("%d", status.AcquireCount), 22)

	if len(status.MissingTables) > 0 {
		for _, table := range status.MissingTables {
			PrintError("missing table " + table)
		}
		return fmt.Errorf("%d pipeline tables missing", len(status.MissingTables))
	}

	PrintSuccess("Database is healthy")
	return nil
}

// maskPassword hides the password of a connection URL
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
