package main

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/forms"
	"github.com/spf13/cobra"
)

var (
	authUsername    string
	authPassword    string
	authConfirm     string
	authEmail       string
	authBadge       string
	authInstitution string
	authFullName    string
	authDepartment  string
	authInviteCode  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session tokens",
	Long: `Sign in with a username and password. Tokens are written to the
session token file so later commands and the daemon reuse them.

Examples:
  # Prompt for the password
  roadwatch login --username alice

  # Non-interactive
  echo "$PASSWORD" | roadwatch login --username alice`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear stored tokens",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user and what they may do",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a user account",
	Long: `Create a user account. Passwords need at least 8 characters, an
uppercase letter, a number and a special character.

Examples:
  roadwatch register --username alice --email alice@example.com`,
	Args: cobra.NoArgs,
	RunE: runRegister,
}

var applyOfficerCmd = &cobra.Command{
	Use:   "apply-officer",
	Short: "Apply for an officer account",
	Long: `Apply for an officer account. The application stays pending until an
admin approves it.

Examples:
  roadwatch apply-officer --username bob --email bob@police.example \
    --badge 4411 --institution "City Traffic Police"`,
	Args: cobra.NoArgs,
	RunE: runApplyOfficer,
}

var registerAdminCmd = &cobra.Command{
	Use:   "register-admin",
	Short: "Request an admin account with an invite code",
	Args:  cobra.NoArgs,
	RunE:  runRegisterAdmin,
}

func init() {
	loginCmd.Flags().StringVarP(&authUsername, "username", "u", "", "username")
	loginCmd.Flags().StringVarP(&authPassword, "password", "p", "", "password (prompted when empty)")

	for _, c := range []*cobra.Command{registerCmd, applyOfficerCmd, registerAdminCmd} {
		c.Flags().StringVarP(&authUsername, "username", "u", "", "username")
		c.Flags().StringVarP(&authPassword, "password", "p", "", "password (prompted when empty)")
		c.Flags().StringVar(&authConfirm, "confirm-password", "", "password confirmation (prompted when empty)")
	}
	registerCmd.Flags().StringVar(&authEmail, "email", "", "email address")
	applyOfficerCmd.Flags().StringVar(&authEmail, "email", "", "email address")
	applyOfficerCmd.Flags().StringVar(&authBadge, "badge", "", "badge number")
	applyOfficerCmd.Flags().StringVar(&authInstitution, "institution", "", "institution")
	registerAdminCmd.Flags().StringVar(&authFullName, "full-name", "", "full name")
	registerAdminCmd.Flags().StringVar(&authDepartment, "department", "", "department")
	registerAdminCmd.Flags().StringVar(&authInviteCode, "invite-code", "", "secret invite code")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(applyOfficerCmd)
	rootCmd.AddCommand(registerAdminCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	p := newPrompter(cmd)
	if err := p.fill(&authUsername, "Username: "); err != nil {
		return err
	}
	if err := p.fill(&authPassword, "Password: "); err != nil {
		return err
	}
	if authUsername == "" || authPassword == "" {
		return errors.New("username and password are required")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.reg.Session().Login(cmd.Context(), authUsername, authPassword); err != nil {
		return errors.New(forms.LoginMessage(err))
	}
	u := a.reg.Session().User()
	if jsonOutput() {
		return printJSON(a.out, u)
	}
	if u == nil {
		fmt.Fprintln(a.out, "Logged in")
		return nil
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", u.Username, u.Role)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.reg.Session().Logout(cmd.Context()); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// whoami is the JSON shape of the whoami command.
type whoami struct {
	User         *feed.User `json:"user"`
	Capabilities []string   `json:"capabilities"`
}

func runWhoami(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	u := a.reg.Session().User()
	caps := a.reg.Session().Capabilities()
	out := whoami{User: u, Capabilities: []string{}}
	for _, c := range []struct {
		name string
		ok   bool
	}{
		{"report", caps.CanReport},
		{"comment", caps.CanComment},
		{"vote", caps.CanVote},
		{"check-in", caps.CanCheckIn},
		{"verify-incidents", caps.CanVerifyIncidents},
		{"moderate-incidents", caps.CanModerateIncidents},
		{"moderate-comments", caps.CanModerateComments},
		{"moderate-users", caps.CanModerateUsers},
		{"manage-admins", caps.CanManageAdmins},
	} {
		if c.ok {
			out.Capabilities = append(out.Capabilities, c.name)
		}
	}

	if jsonOutput() {
		return printJSON(a.out, out)
	}
	if u == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	w := newTable(a.out)
	fmt.Fprintf(w, "Username:\t%s\n", u.Username)
	fmt.Fprintf(w, "Email:\t%s\n", u.Email)
	fmt.Fprintf(w, "Role:\t%s\n", u.Role)
	fmt.Fprintf(w, "Status:\t%s\n", u.Status)
	fmt.Fprintf(w, "Points:\t%d\n", u.Points)
	fmt.Fprintf(w, "Capabilities:\t%v\n", out.Capabilities)
	return w.Flush()
}

// askPasswords fills the password pair and checks it before any request.
func askPasswords(p *prompter) error {
	if err := p.fill(&authPassword, "Password: "); err != nil {
		return err
	}
	if err := p.fill(&authConfirm, "Confirm password: "); err != nil {
		return err
	}
	return forms.ValidateRegistration(authPassword, authConfirm)
}

func runRegister(cmd *cobra.Command, args []string) error {
	p := newPrompter(cmd)
	if err := p.fill(&authUsername, "Username: "); err != nil {
		return err
	}
	if err := p.fill(&authEmail, "Email: "); err != nil {
		return err
	}
	if err := askPasswords(p); err != nil {
		return errors.New(forms.RegisterMessage(err))
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.reg.Client().Register(cmd.Context(), feed.Registration{
		Username: authUsername,
		Email:    authEmail,
		Password: authPassword,
	})
	if err != nil {
		return errors.New(forms.RegisterMessage(err))
	}
	return printMessage(a, resp, "Registration successful. You can now log in.")
}

func runApplyOfficer(cmd *cobra.Command, args []string) error {
	p := newPrompter(cmd)
	for _, f := range []struct {
		v      *string
		prompt string
	}{
		{&authUsername, "Username: "},
		{&authEmail, "Email: "},
		{&authBadge, "Badge number: "},
		{&authInstitution, "Institution: "},
	} {
		if err := p.fill(f.v, f.prompt); err != nil {
			return err
		}
	}
	if err := askPasswords(p); err != nil {
		return errors.New(forms.ApplyOfficerMessage(err))
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.reg.Client().ApplyOfficer(cmd.Context(), feed.OfficerApplication{
		Username:    authUsername,
		Password:    authPassword,
		Email:       authEmail,
		BadgeNumber: authBadge,
		Institution: authInstitution,
	})
	if err != nil {
		return errors.New(forms.ApplyOfficerMessage(err))
	}
	return printMessage(a, resp, "Application submitted. An admin will review it.")
}

func runRegisterAdmin(cmd *cobra.Command, args []string) error {
	p := newPrompter(cmd)
	for _, f := range []struct {
		v      *string
		prompt string
	}{
		{&authUsername, "Username: "},
		{&authFullName, "Full name: "},
		{&authDepartment, "Department: "},
		{&authInviteCode, "Invite code: "},
	} {
		if err := p.fill(f.v, f.prompt); err != nil {
			return err
		}
	}
	if err := askPasswords(p); err != nil {
		return errors.New(forms.RegisterAdminMessage(err))
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.reg.Client().RegisterAdmin(cmd.Context(), feed.AdminRegistration{
		Username:         authUsername,
		Password:         authPassword,
		FullName:         authFullName,
		Department:       authDepartment,
		SecretInviteCode: authInviteCode,
	})
	if err != nil {
		return errors.New(forms.RegisterAdminMessage(err))
	}
	return printMessage(a, resp, "Admin request submitted. An existing admin will review it.")
}

// printMessage shows the API acknowledgement, or fallback when it is empty.
func printMessage(a *app, resp *feed.MessageResponse, fallback string) error {
	msg := fallback
	if resp != nil && resp.Message != "" {
		msg = resp.Message
	}
	if jsonOutput() {
		return printJSON(a.out, feed.MessageResponse{Message: msg})
	}
	fmt.Fprintln(a.out, msg)
	return nil
}
