// Command event-log prints the most recent rows of the event journal at
// EVENT_LOG_DB_PATH together with its schema version.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"gastosbot/internal/cli"
	applog "gastosbot/internal/log"
	"gastosbot/internal/storage"
)

func main() {
	limit := flag.Int("n", 20, "number of events to show")
	flag.Parse()

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(applog.ComponentStorage)

	if cfg.EventLogDBPath == "" {
		logger.Error("EVENT_LOG_DB_PATH is required")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.EventLogDBPath)
	if err != nil {
		logger.Error("Failed to open event journal", applog.FieldError, err, "path", cfg.EventLogDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	version, dirty, err := storage.SchemaVersion(cfg.EventLogDBPath)
	if err != nil {
		logger.Error("Failed to read schema version", applog.FieldError, err)
		os.Exit(1)
	}
	fmt.Printf("schema version %d (dirty=%t)\n", version, dirty)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events, err := repo.RecentEvents(ctx, *limit)
	if err != nil {
		logger.Error("Failed to read events", applog.FieldError, err)
		os.Exit(1)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HANDLED AT\tSENDER\tKIND\tCOMMAND\tIDENTIFIED\tDELIVERED\tDURATION\tERROR")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%t\t%s\t%s\n",
			ev.HandledAt.Local().Format(time.DateTime), ev.SenderID, ev.Kind, ev.Command,
			ev.Identified, ev.Delivered, ev.Duration, ev.Error)
	}
	tw.Flush()
}
