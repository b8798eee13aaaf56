// Command gbctl is the operator CLI for the site service: remote schema
// migration, price quotes and payment links, manual profile resyncs and
// onboarding emails.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	flagPlan   string
	flagPeriod string
	flagCode   string
	flagUser   string
	flagAll    bool

	flagEmail    string
	flagName     string
	flagPlanName string
	flagInvite   string
	flagLocale   string
)

var rootCmd = &cobra.Command{
	Use:   "gbctl",
	Short: "Operate the Garcia Builder site service",
	Long: `gbctl reads the same environment as the service (.env supported).

Available commands:
  migrate - Create the remote tables
  quote   - Price a plan for a period and code
  link    - Print the payment link of a plan
  sync    - Push unsynced profile sections to the remote
  pending - List unsynced profile sections
  onboard - Email the welcome steps to a new client`,
	SilenceUsage: true,
}

// migrateCmd creates the remote schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the remote tables",
	RunE:  runMigrate,
}

// quoteCmd prices a plan
var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a plan for a period and optional discount code",
	RunE:  runQuote,
}

// linkCmd prints a payment link
var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Print the payment link of a plan",
	RunE:  runLink,
}

// syncCmd pushes pending sections
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push unsynced profile sections to the remote",
	Long: `Push unsynced profile sections to the remote store.

Use --user to resync one user or --all to rescan every user with
pending sections, the same rescan the service runs when the remote
comes back online.`,
	RunE: runSync,
}

// pendingCmd lists pending sections
var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List unsynced profile sections",
	RunE:  runPending,
}

// onboardCmd sends the post-purchase welcome email
var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Email the welcome steps to a new client",
	Long: `Email the post-purchase welcome: plan name, coaching app invite
link and next steps, in English or Portuguese (--locale pt).

Requires SMTP_HOST, SMTP_USER and SMTP_PASS. The invite defaults to
TRAINERIZE_INVITE_URL.`,
	RunE: runOnboard,
}

func init() {
	for _, c := range []*cobra.Command{quoteCmd, linkCmd} {
		c.Flags().StringVar(&flagPlan, "plan", "", "plan key")
		c.Flags().StringVar(&flagPeriod, "period", "monthly", "billing period")
		c.Flags().StringVar(&flagCode, "code", "", "discount code")
		_ = c.MarkFlagRequired("plan")
	}

	syncCmd.Flags().StringVar(&flagUser, "user", "", "user id")
	syncCmd.Flags().BoolVar(&flagAll, "all", false, "resync every user with pending sections")
	syncCmd.MarkFlagsMutuallyExclusive("user", "all")
	syncCmd.MarkFlagsOneRequired("user", "all")

	pendingCmd.Flags().StringVar(&flagUser, "user", "", "user id (default: every user)")

	onboardCmd.Flags().StringVar(&flagEmail, "email", "", "client email")
	onboardCmd.Flags().StringVar(&flagName, "name", "", "client name")
	onboardCmd.Flags().StringVar(&flagPlan, "plan", "", "plan key")
	onboardCmd.Flags().StringVar(&flagPlanName, "plan-name", "", "plan name (default: catalog name of --plan)")
	onboardCmd.Flags().StringVar(&flagInvite, "invite", "", "Trainerize invite link (default: TRAINERIZE_INVITE_URL)")
	onboardCmd.Flags().StringVar(&flagLocale, "locale", "en", "email language: en or pt")
	_ = onboardCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(migrateCmd, quoteCmd, linkCmd, syncCmd, pendingCmd, onboardCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
