package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/forms"
	"github.com/fyrsmithlabs/roadwatch/internal/monitor"
	"github.com/fyrsmithlabs/roadwatch/internal/projection"
	"github.com/spf13/cobra"
)

var (
	checkinLat  float64
	checkinLng  float64
	checkinName string
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the reporter leaderboard",
	Args:  cobra.NoArgs,
	RunE:  runLeaderboard,
}

var checkinsCmd = &cobra.Command{
	Use:     "checkins",
	Aliases: []string{"checkin"},
	Short:   "List and record location check-ins",
}

var checkinsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your check-ins",
	Args:  cobra.NoArgs,
	RunE:  runCheckinsList,
}

var checkinsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Check in at a location",
	Long: `Check in at a location.

Examples:
  roadwatch checkins add --lat 52.52 --lng 13.405 --name "Alexanderplatz"`,
	Args: cobra.NoArgs,
	RunE: runCheckinsAdd,
}

func init() {
	checkinsAddCmd.Flags().Float64Var(&checkinLat, "lat", 0, "latitude")
	checkinsAddCmd.Flags().Float64Var(&checkinLng, "lng", 0, "longitude")
	checkinsAddCmd.Flags().StringVar(&checkinName, "name", "", "location name")
	_ = checkinsAddCmd.MarkFlagRequired("lat")
	_ = checkinsAddCmd.MarkFlagRequired("lng")

	checkinsCmd.AddCommand(checkinsListCmd)
	checkinsCmd.AddCommand(checkinsAddCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(checkinsCmd)
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.reg.Client().Leaderboard(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetching leaderboard: %s", forms.ActionMessage(err))
	}
	a.reg.Store().ReconcileLeaderboard(entries)

	var current string
	if u := a.reg.Session().User(); u != nil {
		current = u.Username
	}
	rows := projection.LeaderboardRows(a.reg.Store().Snapshot().Leaderboard, current)
	if jsonOutput() {
		return printJSON(a.out, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(a.out, "No reporters yet")
		return nil
	}
	w := newTable(a.out)
	fmt.Fprintln(w, "RANK\tUSER\tPOINTS\tBADGES")
	for _, r := range rows {
		name := r.Username
		if r.CurrentUser {
			name += " (you)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Rank, name, monitor.FormatPoints(r.Points), strings.Join(r.Badges, ", "))
	}
	return w.Flush()
}

func runCheckinsList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireLogin(); err != nil {
		return err
	}
	checkins, err := a.reg.Client().ListCheckins(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetching check-ins: %s", forms.ActionMessage(err))
	}
	if jsonOutput() {
		return printJSON(a.out, checkins)
	}
	if len(checkins) == 0 {
		fmt.Fprintln(a.out, "No check-ins yet")
		return nil
	}
	now := time.Now()
	w := newTable(a.out)
	fmt.Fprintln(w, "ID\tLOCATION\tNAME\tWHEN")
	for _, c := range checkins {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			c.ID, projection.Location(c.Latitude, c.Longitude), c.LocationName, projection.TimeAgo(c.CreatedAt.Time, now))
	}
	return w.Flush()
}

func runCheckinsAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireLogin(); err != nil {
		return err
	}
	c, err := a.reg.Actions().CheckIn(cmd.Context(), feed.CheckinRequest{
		Latitude:     checkinLat,
		Longitude:    checkinLng,
		LocationName: checkinName,
	})
	if err != nil {
		return actionError("check-in", err)
	}
	if jsonOutput() {
		return printJSON(a.out, c)
	}
	fmt.Fprintf(a.out, "Checked in at %s\n", projection.Location(checkinLat, checkinLng))
	return nil
}
