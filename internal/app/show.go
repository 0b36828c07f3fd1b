package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recent sweep audit records.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	events, err := store.ListRecentSweeps(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stdout, "no sweeps recorded")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tUser\tFrom\tTo\tAmount\tYield (bps)")

	for _, event := range events {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%d\n",
			event.SweptAt.UTC().Format(time.RFC3339),
			sanitizeInline(event.User),
			event.Source,
			event.Destination,
			event.Amount.String(),
			event.YieldBps,
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
