package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"IXScan/internal/broker"
	"IXScan/internal/config"
	"IXScan/internal/model"
	"IXScan/internal/routeserver"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the RIB dumps available at the snapshot time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ts, err := snapshotTime(globalCfg, time.Now())
		if err != nil {
			return err
		}
		sources, err := broker.FromConfig(globalCfg).Sources(cmd.Context(), ts)
		if err != nil {
			return err
		}
		printSources(cmd.OutOrStdout(), ts, sources)
		return nil
	},
}

var routeServersCmd = &cobra.Command{
	Use:   "routeservers",
	Short: "Print the monitored route server table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return printRouteServers(cmd.OutOrStdout(), globalCfg)
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd, routeServersCmd)
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func printSources(out io.Writer, ts time.Time, sources []model.DataSource) {
	table := newTable(out, "Collector", "Project", "Rough size", "URL")
	for _, s := range sources {
		table.Append([]string{s.Collector, s.Project, strconv.FormatInt(s.RoughSize, 10), s.URL})
	}
	table.Render()
	fmt.Fprintf(out, "\n%d RIB dumps at %s.\n", len(sources), ts.Format(time.RFC3339))
}

func printRouteServers(out io.Writer, cfg *config.Config) error {
	rs, err := routeserver.FromConfig(cfg.RouteServers)
	if err != nil {
		return err
	}
	table := newTable(out, "IX", "RS ASN")
	for _, r := range rs.All() {
		table.Append([]string{r.Name, strconv.FormatUint(uint64(r.ASN), 10)})
	}
	table.Render()
	return nil
}
