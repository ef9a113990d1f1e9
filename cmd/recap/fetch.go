package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Kamar-Folarin/github-yearly/internal/config"
	"github.com/Kamar-Folarin/github-yearly/internal/github"
	"github.com/Kamar-Folarin/github-yearly/internal/models"
)

type fetchOptions struct {
	User       string
	Year       int
	Token      string
	PageSize   int
	Output     string
	GraphQLURL string
	Verbose    bool
}

func newFetchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the yearly report of a user",
		Long: `Fetch the profile, repositories with the user's commits, and the
contribution calendar of one user for one calendar year.

Examples:
  recap fetch --user octocat --year 2023
  recap fetch -u octocat -y 2023 --page-size 5 -o octocat.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := fetchOptions{
				User:       v.GetString("user"),
				Year:       v.GetInt("year"),
				Token:      v.GetString("token"),
				PageSize:   v.GetInt("page-size"),
				Output:     v.GetString("output"),
				GraphQLURL: v.GetString("graphql-url"),
				Verbose:    v.GetBool("verbose"),
			}
			if err := opts.validate(time.Now()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runFetch(ctx, opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringP("user", "u", "", "GitHub login to report on")
	flags.IntP("year", "y", time.Now().Year(), "Calendar year of the report")
	flags.StringP("token", "t", "", "GitHub token (default $GITHUB_TOKEN)")
	flags.Int("page-size", github.DefaultPageSize, "Initial repository page size")
	flags.StringP("output", "o", "", "Output file (default stdout)")
	flags.String("graphql-url", config.DefaultGitHubConfig().GraphQLURL, "GitHub GraphQL endpoint")
	flags.BoolP("verbose", "v", false, "Enable debug logging")

	_ = godotenv.Load()
	cobra.CheckErr(v.BindPFlags(flags))
	cobra.CheckErr(v.BindEnv("token", "GITHUB_TOKEN"))
	cobra.CheckErr(v.BindEnv("graphql-url", "GITHUB_GRAPHQL_URL"))

	return cmd
}

func (o fetchOptions) validate(now time.Time) error {
	if o.User == "" {
		return errors.New("--user is required")
	}
	if o.Token == "" {
		return errors.New("a token is required: pass --token or set GITHUB_TOKEN")
	}
	if o.Year < models.FirstReportYear || o.Year > now.Year() {
		return fmt.Errorf("--year must be between %d and %d", models.FirstReportYear, now.Year())
	}
	if o.PageSize < 1 {
		return fmt.Errorf("--page-size must be at least 1, got %d", o.PageSize)
	}
	return nil
}

func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func runFetch(ctx context.Context, opts fetchOptions, stdout io.Writer) error {
	logger := newLogger(opts.Verbose)

	cfg := config.DefaultGitHubConfig()
	cfg.GraphQLURL = opts.GraphQLURL
	client := github.NewClientFromConfig(cfg, logger)
	service := github.NewTransportService(client, logger, github.WithInitialPageSize(opts.PageSize))

	spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).
		Start(fmt.Sprintf("Fetching %d report for %s...", opts.Year, opts.User))

	start := time.Now()
	report, err := service.FetchYearlyReport(ctx, opts.User, opts.Token, opts.Year)
	if err != nil {
		spinner.Fail(fmt.Sprintf("Failed to fetch report: %v", err))
		return err
	}
	spinner.Success(fmt.Sprintf("Fetched report in %s", time.Since(start).Round(time.Millisecond)))

	if err := writeReport(report, opts.Output, stdout); err != nil {
		return err
	}

	if opts.Output != "" {
		printSummary(opts, report)
	}
	return nil
}

func writeReport(report *models.YearlyReport, path string, stdout io.Writer) error {
	data, err := report.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func printSummary(opts fetchOptions, report *models.YearlyReport) {
	c := report.Contribution
	_ = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"User", "Year", "Repositories", "Commits", "PRs", "Issues", "Contributions"},
		{
			opts.User,
			strconv.Itoa(opts.Year),
			strconv.Itoa(len(report.Repositories)),
			strconv.Itoa(report.CommitCount()),
			strconv.Itoa(c.PullRequests),
			strconv.Itoa(c.Issues),
			strconv.Itoa(c.Total),
		},
	}).Render()
	pterm.Success.Printf("Report written to %s\n", opts.Output)
}
