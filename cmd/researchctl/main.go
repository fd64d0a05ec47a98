// researchctl triggers company research generation against a running API and polls
// until every vector is ready or the polling budget runs out.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/Careerlyst/internal/logging"
	"github.com/markdave123-py/Careerlyst/internal/models"
	"github.com/markdave123-py/Careerlyst/internal/poller"
)

// exit codes
const (
	exitOK      = 0
	exitError   = 1
	exitUsage   = 2
	exitTimeout = 3
)

var (
	apiURL    string
	token     string
	companyID string
	logLevel  string
	pollCfg   = poller.DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "researchctl",
	Short: "Generate and inspect company research",
	Long: `researchctl talks to a running research API.

Examples:
  researchctl status   --company acme
  researchctl generate --company acme
  researchctl generate --company acme --vector recent_launches`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print current research status for a company",
	RunE: func(cmd *cobra.Command, args []string) error {
		tr := newTracker()
		defer tr.Close()
		if err := tr.Load(cmd.Context()); err != nil {
			return fmt.Errorf("load: %w", err)
		}
		printSummary(tr.Snapshot())
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate research and wait until it is ready",
	RunE:  runGenerate,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&apiURL, "api", envOr("CAREERLYST_API", "http://localhost:8080"), "research API base URL")
	pf.StringVar(&token, "token", os.Getenv("CAREERLYST_TOKEN"), "bearer token")
	pf.StringVarP(&companyID, "company", "c", "", "company id (required)")
	pf.StringVar(&logLevel, "log-level", "warn", "log level")
	_ = rootCmd.MarkPersistentFlagRequired("company")

	f := generateCmd.Flags()
	f.String("vector", "", "regenerate a single research type instead of every vector")
	f.DurationVar(&pollCfg.AllInterval, "all-interval", pollCfg.AllInterval, "poll interval while generating every vector")
	f.DurationVar(&pollCfg.AllTimeout, "all-timeout", pollCfg.AllTimeout, "polling budget while generating every vector")
	f.DurationVar(&pollCfg.OneInterval, "one-interval", pollCfg.OneInterval, "poll interval while regenerating one vector")
	f.DurationVar(&pollCfg.OneTimeout, "one-timeout", pollCfg.OneTimeout, "polling budget while regenerating one vector")

	rootCmd.AddCommand(statusCmd, generateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	code := exitCode(err)
	switch code {
	case exitOK:
	case exitTimeout:
		fmt.Fprintln(os.Stderr, "researchctl: timed out; rerun with --vector to retry a missing vector")
	default:
		fmt.Fprintf(os.Stderr, "researchctl: %v\n", err)
	}
	return code
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, poller.ErrPollTimeout):
		return exitTimeout
	case isUsageError(err):
		return exitUsage
	default:
		return exitError
	}
}

// usageError marks bad command-line input that cobra itself does not check.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// cobra reports flag problems as plain errors.
func isUsageError(err error) bool {
	var ue *usageError
	if errors.As(err, &ue) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "required flag") ||
		strings.Contains(msg, "unknown flag") ||
		strings.Contains(msg, "unknown command")
}

func newTracker() *poller.Tracker {
	log := logging.New(logLevel, "text").WithField("company_id", companyID)
	client := poller.NewClient(apiURL, token, nil)
	progress := &progressPrinter{}
	return poller.NewTracker(client, companyID, pollCfg,
		poller.WithLogger(log),
		poller.WithOnChange(progress.print))
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	vector, _ := cmd.Flags().GetString("vector")
	if vector != "" {
		if _, err := models.ParseVectorType(vector); err != nil {
			return &usageError{fmt.Errorf("--vector: %w", err)}
		}
	}

	tr := newTracker()
	defer tr.Close()
	if err := tr.Load(ctx); err != nil {
		return fmt.Errorf("load: %w", err)
	}

	var (
		flow *poller.Flow
		err  error
	)
	if vector != "" {
		flow, err = tr.Regenerate(ctx, models.ResearchVectorType(vector))
	} else {
		flow, err = tr.GenerateAll(ctx)
	}
	if err != nil {
		return err
	}

	err = flow.Wait(ctx)
	printSummary(tr.Snapshot())
	return err
}

type progressPrinter struct {
	mu        sync.Mutex
	lastReady int
	lastPhase poller.Phase
}

func (p *progressPrinter) print(s poller.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ready := s.ReadyCount()
	if ready == p.lastReady && s.Phase == p.lastPhase {
		return
	}
	p.lastReady, p.lastPhase = ready, s.Phase
	fmt.Printf("%-16s %2d/%d ready\n", s.Phase, ready, len(s.Vectors))
}

func printSummary(s poller.Snapshot) {
	for _, v := range s.Vectors {
		line := fmt.Sprintf("  %-18s %s", v.Vector, v.State)
		if v.Record != nil {
			line += "  " + v.Record.GeneratedAt.Format("2006-01-02 15:04")
		}
		if v.TimedOut {
			line += "  (timed out)"
		}
		if v.Vector == s.Selected {
			line = "*" + line[1:]
		}
		fmt.Println(line)
	}
	if s.Err != nil {
		fmt.Println("error:", s.Err)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
