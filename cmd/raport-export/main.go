// Command raport-export downloads a monthly report and writes it as CSV.
//
//	raport-export -month 2024-03 -api http://localhost:8081 -out raport.csv
//
// Without -out the file is named after the export date. "-out -" writes to
// standard output.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"raport/internal/cli"
	"raport/internal/config"
	"raport/internal/core"
	"raport/internal/export"
	applog "raport/internal/log"
	"raport/internal/report"
	"raport/internal/reportclient"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
	exitNoData = 3
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentExport)

	ctx, cancel := cli.SignalContext(logger)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, time.Now, logger)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, now func() time.Time, logger *applog.Logger) int {
	cfg := config.Load()

	fs := flag.NewFlagSet("raport-export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	month := fs.String("month", core.CurrentMonthKey(now()).String(), "report month, YYYY-MM")
	api := fs.String("api", cfg.ReportAPIURL, "base URL of the report service")
	token := fs.String("token", cfg.ReportAPIToken, "bearer token for the report service")
	out := fs.String("out", "", `output file, "-" for stdout (default `+export.Filename(now())+`)`)
	timeout := fs.Duration("timeout", cfg.ReportAPITimeout, "request timeout, 0 for none")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	client, err := reportclient.New(*api, reportclient.WithToken(*token), reportclient.WithTimeout(*timeout))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	st := load(ctx, client, *month, now, logger)
	switch {
	case st.Error != "":
		fmt.Fprintln(stderr, st.Error)
		return exitFailed
	case st.Loading:
		fmt.Fprintln(stderr, report.MsgLoadFailed)
		return exitFailed
	case !export.CanExport(st.Report):
		fmt.Fprintf(stderr, "Brak danych za %s\n", st.SelectedMonth)
		return exitNoData
	}

	csv := export.GenerateCSV(*st.Report)
	target := *out
	if target == "" {
		target = export.Filename(now())
	}
	if target == "-" {
		_, err = io.WriteString(stdout, csv)
	} else {
		err = os.WriteFile(target, []byte(csv), 0o644)
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailed
	}

	logger.Info("Report exported",
		applog.FieldMonth, st.SelectedMonth.String(),
		applog.FieldCount, len(st.Report.Expenses),
		"output", target)
	return exitOK
}

// load drives a report view to completion for month.
func load(ctx context.Context, f report.Fetcher, month string, now func() time.Time, logger *applog.Logger) report.State {
	return report.Load(ctx, f, month, report.WithClock(now), report.WithLogger(logger))
}
