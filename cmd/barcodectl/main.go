// barcodectl queries barcoded for a date range and either upserts the rows
// into a SQL table or prints them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/danmuck/barcoded/internal/client"
	"github.com/danmuck/barcoded/internal/observability"
	"github.com/danmuck/barcoded/internal/protocol"
	"github.com/danmuck/barcoded/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observability.InitLogger("barcodectl")
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Error().Err(err).Msg("barcodectl failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}

	if opts.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.cfg.Timeout)
		defer cancel()
	}

	// Open the sink first so a bad database config fails before the query.
	var sink store.Sink
	if opts.print {
		sink = &printSink{w: stdout}
	} else {
		s, err := store.Open(ctx, opts.cfg.Database)
		if err != nil {
			return err
		}
		defer s.Close()
		sink = s
	}

	c := client.New(opts.cfg.Server)
	resp, err := c.Query(ctx, opts.start, opts.end)
	if errors.Is(err, client.ErrNoResponse) {
		return fmt.Errorf("no data for %s..%s from %s: server closed the connection", opts.start, opts.end, c.Addr())
	}
	if err != nil {
		return err
	}
	log.Debug().Int("rows", len(resp.Rows)).Str("server", c.Addr()).Msg("response received")

	n, err := sink.Upsert(ctx, resp.Rows)
	if err != nil {
		return err
	}
	if !opts.print {
		log.Info().
			Int("rows", n).
			Str("table", opts.cfg.Database.Table).
			Stringer("start", opts.start).
			Stringer("end", opts.end).
			Msg("rows upserted")
	}
	return nil
}

// printSink writes rows as an aligned table.
type printSink struct {
	w io.Writer
}

func (p *printSink) Upsert(_ context.Context, rows []protocol.Row) (int, error) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tCODE\tCOUNT")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", row.Date, row.Code, row.Count)
	}
	if err := tw.Flush(); err != nil {
		return 0, err
	}
	return len(rows), nil
}
