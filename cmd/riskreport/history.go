package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/risk.report/internal/analysis"
	"github.com/banshee-data/risk.report/internal/db"
	"github.com/banshee-data/risk.report/internal/report"
	"github.com/banshee-data/risk.report/internal/risk"
	"github.com/banshee-data/risk.report/internal/timeutil"
)

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("history", stderr)
	var common commonFlags
	common.register(fs)
	var (
		asJSON    = fs.Bool("json", false, "Print analyses as JSON")
		levelFlag = fs.String("level", "", "Only show analyses at this risk level")
		chartPath = fs.String("chart", "", "Write an HTML bar chart of the history to this file")
		tz        = fs.String("tz", "Local", "Timezone for the TIME column (tz database name)")
	)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var level risk.Level
	if *levelFlag != "" {
		l, err := risk.ParseLevel(strings.ToUpper(*levelFlag))
		if err != nil {
			return err
		}
		level = l
	}

	if !timeutil.IsTimezoneValid(*tz) {
		return fmt.Errorf("unknown timezone %q", *tz)
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return err
	}
	defer database.Close()

	all, err := db.NewHistoryStore(database).List(ctx)
	if err != nil {
		return err
	}
	list := make([]*analysis.RiskAnalysis, 0, len(all))
	for _, a := range all {
		if level == "" || a.RiskLevel == level {
			list = append(list, a)
		}
	}

	if *chartPath != "" {
		if err := writeHistoryChart(*chartPath, list); err != nil {
			return err
		}
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	return printHistoryTable(stdout, list, *tz)
}

func writeHistoryChart(path string, list []*analysis.RiskAnalysis) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	if err := report.RenderHistoryPage(f, list); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printHistoryTable(w io.Writer, list []*analysis.RiskAnalysis, tz string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "TIME (%s)\tLEVEL\tSCORE\tSOURCE\tLOCATION\tID\n", tz)
	for _, a := range list {
		ts, err := timeutil.ConvertTime(a.Timestamp, tz)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			ts.Format(time.DateTime), a.RiskLevel, a.RiskScore, a.Source, a.Location, a.ID)
	}
	return tw.Flush()
}

func runMigrate(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("migrate", stderr)
	var common commonFlags
	common.register(fs)
	fs.Usage = func() { db.PrintMigrateHelp(fs.Output()) }
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), cfg.GetDBPath(), stdout)
}
