package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garciabuilder/site-service/config"
	database "github.com/garciabuilder/site-service/internal/core"
	"github.com/garciabuilder/site-service/internal/core/domain"
	"github.com/garciabuilder/site-service/internal/core/repository/local"
	"github.com/garciabuilder/site-service/internal/core/repository/psql"
	logicv1 "github.com/garciabuilder/site-service/internal/logic/v1"
	"github.com/garciabuilder/site-service/middleware"
)

const connectTimeout = 10 * time.Second

// loadConfig reads and validates the environment.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return middleware.NewLoggerFromConfig(cfg.Logging.Level, "console")
}

func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if !cfg.Database.Enabled() {
		return nil, errors.New("DB_HOST is not set")
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return database.Connect(ctx, &cfg.Database)
}

func loadPricing(cfg *config.Config) (*logicv1.PricingService, error) {
	data, err := cfg.CatalogYAML()
	if err != nil {
		return nil, err
	}
	catalog, err := logicv1.LoadCatalog(data)
	if err != nil {
		return nil, err
	}
	// quotes and links never touch the local store
	return logicv1.NewPricingService(catalog, nil, nil), nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := connect(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := psql.Migrate(cmd.Context(), pool); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "remote schema up to date")
	return nil
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pricing, err := loadPricing(cfg)
	if err != nil {
		return err
	}
	q, err := pricing.Quote(flagPlan, flagPeriod, flagCode)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidDiscountCode) {
			if s := pricing.SuggestCodes(flagCode); len(s) > 0 {
				return fmt.Errorf("%w (did you mean %s?)", err, strings.Join(s, " or "))
			}
		}
		return err
	}
	printQuote(cmd.OutOrStdout(), q)
	return nil
}

func printQuote(w io.Writer, q *domain.Quote) {
	fmt.Fprintf(w, "plan:      %s (%s, %d months)\n", q.PlanKey, q.Period, q.Months)
	fmt.Fprintf(w, "monthly:   %s%d (was %s%d, -%d%%)\n", q.Currency, q.DiscountedMonthlyPrice, q.Currency, q.OriginalMonthlyPrice, q.DiscountPercentage)
	if q.DiscountCode != "" {
		fmt.Fprintf(w, "code:      %s\n", q.DiscountCode)
	}
	fmt.Fprintf(w, "total:     %s%d\n", q.Currency, q.TotalPrice)
	fmt.Fprintf(w, "savings:   %s%d\n", q.Currency, q.TotalSavings)
}

func runLink(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pricing, err := loadPricing(cfg)
	if err != nil {
		return err
	}
	link, err := pricing.PaymentLink(flagPlan, flagPeriod, flagCode, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), link)
	return nil
}

// openSync wires the local store and remote the same way the service does.
func openSync(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*logicv1.ProfileSync, *psql.ProfileRepository, func(), error) {
	store, err := local.New(cfg.Local.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := connect(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	repo := psql.NewProfileRepository(pool)
	closeFn := func() {
		pool.Close()
		store.Close()
	}
	return logicv1.NewProfileSync(store, repo, logicv1.NewBroadcaster(), logger), repo, closeFn, nil
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	profiles, repo, closeFn, err := openSync(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if flagAll {
		monitor := logicv1.NewMonitor(repo, profiles, logicv1.MonitorConfig{Concurrency: cfg.Sync.Concurrency}, logger)
		n := monitor.Rescan(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "synced %d section(s)\n", n)
		return nil
	}

	n, err := profiles.SyncPending(ctx, flagUser)
	if err != nil {
		return err
	}
	left, err := profiles.PendingSections(ctx, flagUser)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "synced %d section(s) for %s, %d pending\n", n, flagUser, len(left))
	return nil
}

func runPending(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := local.New(cfg.Local.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	// listing needs no remote
	profiles := logicv1.NewProfileSync(store, nil, nil, nil)
	ctx := cmd.Context()

	users := []string{flagUser}
	if flagUser == "" {
		if users, err = profiles.PendingUsers(ctx); err != nil {
			return err
		}
	}
	w := cmd.OutOrStdout()
	for _, userID := range users {
		sections, err := profiles.PendingSections(ctx, userID)
		if err != nil {
			return err
		}
		if len(sections) == 0 {
			continue
		}
		names := make([]string, len(sections))
		for i, s := range sections {
			names[i] = string(s)
		}
		fmt.Fprintf(w, "%s\t%s\n", userID, strings.Join(names, ","))
	}
	return nil
}

func runOnboard(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Mail.Enabled() {
		return errors.New("SMTP_HOST, SMTP_USER and SMTP_PASS must be set")
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pricing, err := loadPricing(cfg)
	if err != nil {
		return err
	}
	mailer, err := logicv1.NewSMTPMailer(cfg.Mail)
	if err != nil {
		return err
	}
	svc := logicv1.NewOnboardingService(mailer, pricing, cfg.Mail.TrainerizeInviteURL, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	if _, err := svc.SendWelcome(ctx, domain.OnboardingRequest{
		Email:     flagEmail,
		Name:      flagName,
		PlanKey:   flagPlan,
		PlanName:  flagPlanName,
		InviteURL: flagInvite,
		Locale:    flagLocale,
	}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "onboarding email sent to %s\n", flagEmail)
	return nil
}
