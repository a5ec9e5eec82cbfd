package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/actions"
	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/forms"
	"github.com/fyrsmithlabs/roadwatch/internal/projection"
	"github.com/spf13/cobra"
)

var (
	incidentSearch    string
	incidentCategory  string
	reportLat         float64
	reportLng         float64
	reportDescription string
	reportSeverity    int
	reportInjured     int
	reportDead        int
	reportPhoto       string
	verifyFalseReport bool
)

var incidentsCmd = &cobra.Command{
	Use:     "incidents",
	Aliases: []string{"incident", "inc"},
	Short:   "List, report and moderate incidents",
}

var incidentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List incidents",
	Long: `List incidents in the order the server returns them.

Examples:
  # Everything
  roadwatch incidents list

  # Severe incidents near a place name or coordinate
  roadwatch incidents list --category severe --search "ring road"

  # Machine readable
  roadwatch incidents list -o json`,
	Args: cobra.NoArgs,
	RunE: runIncidentsList,
}

var incidentsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one incident and its comments",
	Args:  cobra.ExactArgs(1),
	RunE:  runIncidentsShow,
}

var incidentsReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report a new incident",
	Long: `Report a new incident at a location.

Examples:
  roadwatch incidents report --lat 52.52 --lng 13.405 \
    --description "Truck overturned on Ring Road" --severity 4 --injured 2

  # With a photo
  roadwatch incidents report --lat 52.52 --lng 13.405 \
    --description "Pile-up near exit 12" --severity 5 --photo crash.jpg`,
	Args: cobra.NoArgs,
	RunE: runIncidentsReport,
}

var incidentsVerifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Confirm a pending incident, or flag it as a false report",
	Args:  cobra.ExactArgs(1),
	RunE:  runIncidentsVerify,
}

var incidentsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an incident",
	Args:  cobra.ExactArgs(1),
	RunE:  runIncidentsDelete,
}

func init() {
	incidentsListCmd.Flags().StringVarP(&incidentSearch, "search", "s", "", "filter by title or location")
	incidentsListCmd.Flags().StringVarP(&incidentCategory, "category", "c", "", "filter by category: severe, moderate, pending or cleared")

	incidentsReportCmd.Flags().Float64Var(&reportLat, "lat", 0, "latitude")
	incidentsReportCmd.Flags().Float64Var(&reportLng, "lng", 0, "longitude")
	incidentsReportCmd.Flags().StringVarP(&reportDescription, "description", "d", "", "what happened (at least 10 characters)")
	incidentsReportCmd.Flags().IntVar(&reportSeverity, "severity", 3, "severity from 1 to 5")
	incidentsReportCmd.Flags().IntVar(&reportInjured, "injured", 0, "number of injured")
	incidentsReportCmd.Flags().IntVar(&reportDead, "dead", 0, "number of fatalities")
	incidentsReportCmd.Flags().StringVar(&reportPhoto, "photo", "", "path to a JPG, PNG or GIF photo")

	incidentsVerifyCmd.Flags().BoolVar(&verifyFalseReport, "false-report", false, "flag as a false report instead of confirming")

	incidentsCmd.AddCommand(incidentsListCmd)
	incidentsCmd.AddCommand(incidentsShowCmd)
	incidentsCmd.AddCommand(incidentsReportCmd)
	incidentsCmd.AddCommand(incidentsVerifyCmd)
	incidentsCmd.AddCommand(incidentsDeleteCmd)
	rootCmd.AddCommand(incidentsCmd)
}

func runIncidentsList(cmd *cobra.Command, args []string) error {
	category := projection.Category(incidentCategory)
	if category != "" && !validCategory(category) {
		return fmt.Errorf("invalid --category %q", incidentCategory)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.loadIncidents(cmd.Context()); err != nil {
		return err
	}
	markers := projection.Markers(a.reg.Store().Snapshot().Incidents, incidentSearch, time.Now())
	markers = projection.FilterCategory(markers, category)

	if jsonOutput() {
		return printJSON(a.out, markers)
	}
	if len(markers) == 0 {
		fmt.Fprintln(a.out, "No incidents found")
		return nil
	}
	w := newTable(a.out)
	fmt.Fprintln(w, "ID\tCATEGORY\tSEVERITY\tSTATUS\tLOCATION\tREPORTED\tTITLE")
	for _, m := range markers {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			m.ID, m.Category, m.Severity, m.Status, m.Location, m.Time, m.Title)
	}
	return w.Flush()
}

func validCategory(c projection.Category) bool {
	for _, v := range projection.Categories {
		if v == c {
			return true
		}
	}
	return false
}

// incidentDetail is the JSON shape of incidents show.
type incidentDetail struct {
	Incident projection.Marker `json:"incident"`
	Comments []commentRow      `json:"comments"`
}

func runIncidentsShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	id := feed.ID(args[0])
	if err := a.loadIncidents(cmd.Context()); err != nil {
		return err
	}
	if err := a.loadComments(cmd.Context(), id); err != nil {
		return err
	}
	snap := a.reg.Store().Snapshot()
	inc, _ := snap.Incident(id)
	now := time.Now()
	detail := incidentDetail{
		Incident: projection.MarkerFor(inc, now),
		Comments: commentRows(snap.Comments[id], now),
	}

	if jsonOutput() {
		return printJSON(a.out, detail)
	}
	m := detail.Incident
	w := newTable(a.out)
	fmt.Fprintf(w, "ID:\t%s\n", m.ID)
	fmt.Fprintf(w, "Title:\t%s\n", m.Title)
	fmt.Fprintf(w, "Category:\t%s\n", m.Category)
	fmt.Fprintf(w, "Status:\t%s\n", m.Status)
	fmt.Fprintf(w, "Severity:\t%d\n", m.Severity)
	fmt.Fprintf(w, "Location:\t%s\n", m.Location)
	fmt.Fprintf(w, "Reported:\t%s\n", m.Time)
	if m.ReporterUsername != "" {
		fmt.Fprintf(w, "Reporter:\t%s\n", m.ReporterUsername)
	}
	fmt.Fprintf(w, "Casualties:\t%d injured, %d dead\n", m.CasualtiesInjured, m.CasualtiesDead)
	if m.PhotoURL != "" {
		fmt.Fprintf(w, "Photo:\t%s\n", m.PhotoURL)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "\nComments (%d):\n", len(detail.Comments))
	return printComments(a, detail.Comments)
}

func runIncidentsReport(cmd *cobra.Command, args []string) error {
	loc := forms.Location{
		Latitude:  reportLat,
		Longitude: reportLng,
		Set:       cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng"),
	}
	report := feed.IncidentReport{
		Description:       reportDescription,
		Severity:          reportSeverity,
		CasualtiesInjured: reportInjured,
		CasualtiesDead:    reportDead,
	}
	if reportPhoto != "" {
		data, err := os.ReadFile(reportPhoto)
		if err != nil {
			return fmt.Errorf("reading photo: %w", err)
		}
		report.Photo = &feed.Photo{Filename: filepath.Base(reportPhoto), Data: data}
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireLogin(); err != nil {
		return err
	}
	res, err := a.reg.Actions().SubmitReport(cmd.Context(), loc, report)
	if err != nil {
		if errors.Is(err, actions.ErrNotPermitted) {
			return actionError("report", err)
		}
		return errors.New(forms.ReportMessage(err))
	}

	if jsonOutput() {
		return printJSON(a.out, res)
	}
	if res.Incident != nil {
		fmt.Fprintf(a.out, "Reported incident %s\n", res.Incident.ID)
	} else {
		fmt.Fprintln(a.out, "Incident reported")
	}
	fmt.Fprintf(a.out, "You earned %d points\n", res.PointsEarned)
	return nil
}

func runIncidentsVerify(cmd *cobra.Command, args []string) error {
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
	status := feed.StatusConfirmed
	if verifyFalseReport {
		status = feed.StatusFalseReport
	}
	id := feed.ID(args[0])
	if err := a.reg.Actions().Verify(cmd.Context(), id, status); err != nil {
		return actionError("verify", err)
	}
	fmt.Fprintf(a.out, "Incident %s marked %s\n", id, status)
	return nil
}

func runIncidentsDelete(cmd *cobra.Command, args []string) error {
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
	id := feed.ID(args[0])
	if err := a.reg.Actions().DeleteIncident(cmd.Context(), id); err != nil {
		return actionError("delete", err)
	}
	fmt.Fprintf(a.out, "Incident %s deleted\n", id)
	return nil
}
