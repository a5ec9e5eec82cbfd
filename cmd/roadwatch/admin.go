package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/actions"
	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/forms"
	"github.com/fyrsmithlabs/roadwatch/internal/projection"
	"github.com/spf13/cobra"
)

var (
	userSearch  string
	banDuration string
	logLevel    string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Moderate accounts and review activity (officers and admins)",
}

var adminUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List user accounts",
	Args:  cobra.NoArgs,
	RunE:  runAdminUsers,
}

var adminPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List officer applications waiting for review",
	Args:  cobra.NoArgs,
	RunE:  runAdminPending,
}

var adminBanCmd = &cobra.Command{
	Use:   "ban <user-id>",
	Short: "Ban a user or lift a ban",
	Long: `Ban a user for a fixed duration, or lift an existing ban.

Examples:
  roadwatch admin ban 17 --duration 1week
  roadwatch admin ban 17 --duration unban`,
	Args: cobra.ExactArgs(1),
	RunE: runAdminBan,
}

var adminDeleteUserCmd = &cobra.Command{
	Use:   "delete-user <user-id>",
	Short: "Delete a user account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminDeleteUser,
}

var adminProcessOfficerCmd = &cobra.Command{
	Use:       "process-officer <user-id> <approve|reject>",
	Short:     "Approve or reject an officer application",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(feed.DecisionApprove), string(feed.DecisionReject)},
	RunE:      runAdminProcessOfficer,
}

var adminProcessAdminCmd = &cobra.Command{
	Use:   "process-admin <secret-user-id> <approve|reject>",
	Short: "Approve or reject an admin request by its secret id",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdminProcessAdmin,
}

var adminLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the activity log derived from recent incidents",
	Args:  cobra.NoArgs,
	RunE:  runAdminLogs,
}

var adminStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show incident and account analytics",
	Args:  cobra.NoArgs,
	RunE:  runAdminStats,
}

func init() {
	adminUsersCmd.Flags().StringVarP(&userSearch, "search", "s", "", "filter by username or email")
	adminBanCmd.Flags().StringVar(&banDuration, "duration", string(feed.BanOneDay), "1day, 1week, permanent or unban")
	adminLogsCmd.Flags().StringVar(&logLevel, "level", "all", "all, info, success, warning or error")

	adminCmd.AddCommand(adminUsersCmd)
	adminCmd.AddCommand(adminPendingCmd)
	adminCmd.AddCommand(adminBanCmd)
	adminCmd.AddCommand(adminDeleteUserCmd)
	adminCmd.AddCommand(adminProcessOfficerCmd)
	adminCmd.AddCommand(adminProcessAdminCmd)
	adminCmd.AddCommand(adminLogsCmd)
	adminCmd.AddCommand(adminStatsCmd)
	rootCmd.AddCommand(adminCmd)
}

func printUsers(a *app, users []feed.User) error {
	if jsonOutput() {
		return printJSON(a.out, users)
	}
	if len(users) == 0 {
		fmt.Fprintln(a.out, "No users found")
		return nil
	}
	w := newTable(a.out)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE\tSTATUS\tPOINTS")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", u.ID, u.Username, u.Email, u.Role, u.Status, u.Points)
	}
	return w.Flush()
}

func runAdminUsers(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireLogin(); err != nil {
		return err
	}
	if err := a.loadUsers(cmd.Context()); err != nil {
		return err
	}
	return printUsers(a, projection.FilterUsers(a.reg.Store().Snapshot().Users, userSearch))
}

func runAdminPending(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireLogin(); err != nil {
		return err
	}
	users, err := a.reg.Client().PendingOfficers(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetching applications: %s", forms.ActionMessage(err))
	}
	a.reg.Store().ReconcilePendingOfficers(users)
	return printUsers(a, a.reg.Store().Snapshot().PendingOfficers)
}

func runAdminBan(cmd *cobra.Command, args []string) error {
	d := feed.BanDuration(banDuration)
	if !d.Valid() {
		return fmt.Errorf("invalid --duration %q (expected 1day, 1week, permanent or unban)", banDuration)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireLogin(); err != nil {
		return err
	}
	if err := a.loadUsers(cmd.Context()); err != nil {
		return err
	}
	id := feed.ID(args[0])
	if err := a.reg.Actions().Ban(cmd.Context(), id, d); err != nil {
		return actionError("ban", err)
	}
	if d == feed.BanLift {
		fmt.Fprintf(a.out, "Ban lifted for user %s\n", id)
		return nil
	}
	fmt.Fprintf(a.out, "User %s banned (%s)\n", id, d)
	return nil
}

func runAdminDeleteUser(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireLogin(); err != nil {
		return err
	}
	id := feed.ID(args[0])
	if err := a.reg.Actions().DeleteUser(cmd.Context(), id); err != nil {
		return actionError("delete user", err)
	}
	fmt.Fprintf(a.out, "User %s deleted\n", id)
	return nil
}

func parseDecision(s string) (feed.Decision, error) {
	d := feed.Decision(s)
	if !d.Valid() {
		return "", fmt.Errorf("invalid decision %q (expected approve or reject)", s)
	}
	return d, nil
}

func runAdminProcessOfficer(cmd *cobra.Command, args []string) error {
	d, err := parseDecision(args[1])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireLogin(); err != nil {
		return err
	}
	msg, err := a.reg.Actions().ProcessOfficer(cmd.Context(), feed.ID(args[0]), d)
	if err != nil {
		return actionError("process officer", err)
	}
	return printMessage(a, &feed.MessageResponse{Message: msg}, fmt.Sprintf("Application %sd", d))
}

func runAdminProcessAdmin(cmd *cobra.Command, args []string) error {
	d, err := parseDecision(args[1])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireLogin(); err != nil {
		return err
	}
	msg, err := a.reg.Actions().ProcessAdmin(cmd.Context(), args[0], d)
	if err != nil {
		if errors.Is(err, actions.ErrNotPermitted) {
			return actionError("process admin", err)
		}
		return errors.New(forms.ProcessAdminMessage(err))
	}
	return printMessage(a, &feed.MessageResponse{Message: msg}, "")
}

func runAdminLogs(cmd *cobra.Command, args []string) error {
	level := projection.LogLevel(logLevel)
	if level == "all" {
		level = ""
	}
	if level != "" && !level.Valid() {
		return fmt.Errorf("invalid --level %q", logLevel)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.loadIncidents(cmd.Context()); err != nil {
		return err
	}
	entries := projection.FilterLogs(projection.SystemLogs(a.reg.Store().Snapshot().Incidents), level)
	if jsonOutput() {
		return printJSON(a.out, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No activity")
		return nil
	}
	now := time.Now()
	w := newTable(a.out)
	fmt.Fprintln(w, "LEVEL\tWHEN\tSOURCE\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Level, projection.TimeAgo(e.Timestamp, now), e.Source, e.Message)
	}
	return w.Flush()
}

func runAdminStats(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireLogin(); err != nil {
		return err
	}
	if err := a.loadIncidents(cmd.Context()); err != nil {
		return err
	}
	if err := a.loadUsers(cmd.Context()); err != nil {
		return err
	}
	snap := a.reg.Store().Snapshot()
	stats := projection.Analytics(snap.Incidents, snap.Users, time.Now())
	if jsonOutput() {
		return printJSON(a.out, stats)
	}

	w := newTable(a.out)
	fmt.Fprintf(w, "Total incidents:\t%d\n", stats.TotalIncidents)
	fmt.Fprintf(w, "Confirmed today:\t%d\n", stats.ConfirmedToday)
	fmt.Fprintf(w, "Total users:\t%d\n", stats.TotalUsers)
	fmt.Fprintf(w, "Active officers:\t%d\n", stats.ActiveOfficers)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "DAY\tSEVERE\tMODERATE")
	for _, d := range stats.Weekly {
		fmt.Fprintf(w, "%s\t%d\t%d\n", d.Day, d.Severe, d.Moderate)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "HOUR\tINCIDENTS")
	for _, h := range stats.Hourly {
		fmt.Fprintf(w, "%s\t%d\n", h.Hour, h.Incidents)
	}
	return w.Flush()
}
