package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fyrsmithlabs/roadwatch/internal/monitor"
	"github.com/spf13/cobra"
)

var monitorRefresh time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live terminal dashboard of incidents and the leaderboard",
	Long: `Open a live dashboard that polls the incident feed and leaderboard.

Keys:
  j/k      move between incidents
  enter    show details of the highlighted incident
  /        search by title or location
  l        switch map layer
  r        refresh now
  q        quit`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorRefresh, "refresh", time.Second, "how often the screen redraws")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorRefresh <= 0 {
		return fmt.Errorf("--refresh must be positive")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	engine := a.reg.Engine()
	stopIncidents, err := engine.WatchIncidents()
	if err != nil {
		return err
	}
	defer stopIncidents()
	stopLeaderboard, err := engine.WatchLeaderboard()
	if err != nil {
		return err
	}
	defer stopLeaderboard()

	p := tea.NewProgram(
		monitor.NewModel(a.reg.Store(), engine, monitorRefresh),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
