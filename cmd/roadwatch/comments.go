package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/monitor"
	"github.com/fyrsmithlabs/roadwatch/internal/projection"
	"github.com/spf13/cobra"
)

var commentsCmd = &cobra.Command{
	Use:     "comments",
	Aliases: []string{"comment"},
	Short:   "Read and post comments on an incident",
}

var commentsListCmd = &cobra.Command{
	Use:   "list <incident-id>",
	Short: "List the comments on an incident",
	Args:  cobra.ExactArgs(1),
	RunE:  runCommentsList,
}

var commentsAddCmd = &cobra.Command{
	Use:   "add <incident-id> <text>...",
	Short: "Post a comment",
	Long: `Post a comment of up to 500 characters on an incident.

Examples:
  roadwatch comments add 42 "Left lane is open again"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCommentsAdd,
}

var commentsVoteCmd = &cobra.Command{
	Use:   "vote <incident-id> <comment-id>",
	Short: "Upvote a comment",
	Args:  cobra.ExactArgs(2),
	RunE:  runCommentsVote,
}

var commentsDeleteCmd = &cobra.Command{
	Use:   "delete <incident-id> <comment-id>",
	Short: "Delete a comment",
	Args:  cobra.ExactArgs(2),
	RunE:  runCommentsDelete,
}

func init() {
	commentsCmd.AddCommand(commentsListCmd)
	commentsCmd.AddCommand(commentsAddCmd)
	commentsCmd.AddCommand(commentsVoteCmd)
	commentsCmd.AddCommand(commentsDeleteCmd)
	rootCmd.AddCommand(commentsCmd)
}

// commentRow is one comment as printed.
type commentRow struct {
	ID     feed.ID `json:"id"`
	Author string  `json:"author"`
	Score  int     `json:"score"`
	Time   string  `json:"time"`
	Text   string  `json:"content"`
}

func commentRows(comments []feed.Comment, now time.Time) []commentRow {
	rows := make([]commentRow, 0, len(comments))
	for _, c := range comments {
		rows = append(rows, commentRow{
			ID:     c.ID,
			Author: c.AuthorUsername,
			Score:  c.Score,
			Time:   projection.TimeAgo(c.CreatedAt.Time, now),
			Text:   c.Content,
		})
	}
	return rows
}

func printComments(a *app, rows []commentRow) error {
	if len(rows) == 0 {
		fmt.Fprintln(a.out, "No comments yet")
		return nil
	}
	w := newTable(a.out)
	fmt.Fprintln(w, "ID\tAUTHOR\tSCORE\tPOSTED\tCOMMENT")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.Author, r.Score, r.Time, monitor.Truncate(r.Text, 60))
	}
	return w.Flush()
}

func runCommentsList(cmd *cobra.Command, args []string) error {
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
	rows := commentRows(a.reg.Store().Snapshot().Comments[id], time.Now())
	if jsonOutput() {
		return printJSON(a.out, rows)
	}
	return printComments(a, rows)
}

func runCommentsAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireLogin(); err != nil {
		return err
	}
	c, err := a.reg.Actions().AddComment(cmd.Context(), feed.ID(args[0]), strings.Join(args[1:], " "))
	if err != nil {
		return actionError("comment", err)
	}
	if jsonOutput() {
		return printJSON(a.out, c)
	}
	if c != nil && c.ID != "" {
		fmt.Fprintf(a.out, "Comment %s posted\n", c.ID)
		return nil
	}
	fmt.Fprintln(a.out, "Comment posted")
	return nil
}

func runCommentsVote(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireLogin(); err != nil {
		return err
	}
	if err := a.reg.Actions().Vote(cmd.Context(), feed.ID(args[0]), feed.ID(args[1])); err != nil {
		return actionError("vote", err)
	}
	fmt.Fprintf(a.out, "Voted for comment %s\n", args[1])
	return nil
}

func runCommentsDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireLogin(); err != nil {
		return err
	}
	incidentID, commentID := feed.ID(args[0]), feed.ID(args[1])
	if err := a.loadIncidents(cmd.Context()); err != nil {
		return err
	}
	if err := a.loadComments(cmd.Context(), incidentID); err != nil {
		return err
	}
	if err := a.reg.Actions().DeleteComment(cmd.Context(), incidentID, commentID); err != nil {
		return actionError("delete comment", err)
	}
	fmt.Fprintf(a.out, "Comment %s deleted\n", commentID)
	return nil
}
