package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goplacement/internal/chain"
	"github.com/TimurManjosov/goplacement/internal/cli"
	"github.com/TimurManjosov/goplacement/internal/logging"
	"github.com/TimurManjosov/goplacement/internal/rules"
)

var (
	chainConfig  string
	chainProfile string
	chainCurrent string
	chainVisitor string
	chainSeed    uint64
	chainLive    bool
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Plan and simulate redirect chains",
	Long: `Build the redirect chain a visitor would walk, from a YAML file of domain
groups and a fallback domain. Profiles: sequential (config order, 6-8s
delays, upcoming hop's snippet injected while waiting) and shuffled
(deduplicated, shuffled, 5-8s delays, current hop's snippet injected).`,
}

var chainPlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the hop order for a visitor",
	Long: `Print the hop order for a visitor landing on --current.

Examples:
  placement chain plan --config chain.yaml --profile sequential --current a.com
  placement chain plan --config chain.yaml --profile shuffled --seed 42`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, p, seed, err := chainInputs(cmd)
		if err != nil {
			return err
		}
		c := chain.Build(cfg, chainCurrent, p, chain.NewRand(seed))
		if quiet {
			return nil
		}
		return printer(cmd).Plan(cli.Plan{
			Profile:  p.Name,
			Seed:     seed,
			Current:  c.Current.Domain,
			Hops:     c.Hops,
			Fallback: c.Fallback,
		})
	},
}

var chainSimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Walk a chain and print every navigation and injection",
	Long: `Walk a chain and print every navigation and injection with its time
offset. By default the clock is simulated and the walk finishes at once;
--live waits out the real delays and logs each step as it happens.

Examples:
  placement chain simulate --config chain.yaml --profile shuffled --current a.com
  placement chain simulate --config chain.yaml --live`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, p, seed, err := chainInputs(cmd)
		if err != nil {
			return err
		}
		c := chain.Build(cfg, chainCurrent, p, chain.NewRand(seed))

		var clock chain.Clock
		manual := chain.NewManualClock(time.Now().UTC().Truncate(time.Second))
		clock = manual
		if chainLive {
			clock = chain.RealClock()
		}
		start := clock.Now()

		level := "warn"
		if verbose || chainLive {
			level = "debug"
		}
		log := logging.New(level, logging.FormatConsole, cmd.ErrOrStderr())

		rec := chain.NewRecorder(clock)
		var sink walkSink = rec
		if chainLive {
			sink = teeSink{rec, chain.LogSink{Log: log}}
		}
		w := chain.NewWalker(c, p, clock, chain.NewRand(seed), sink, sink, logging.Component(log, "chain"))
		if err := w.Start(); err != nil {
			return err
		}

		if chainLive {
			select {
			case <-w.Done():
			case <-cmd.Context().Done():
				w.Stop()
				fmt.Fprintln(cmd.ErrOrStderr(), "walk interrupted")
			}
		} else {
			for manual.FireNext() {
			}
		}

		if quiet {
			return nil
		}
		if verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "walk %s: seed=%d delays=%v\n", w.ID(), seed, w.Delays())
		}
		return printer(cmd).Events(start, rec.Events())
	},
}

// chainInputs loads the chain file and resolves the profile and seed flags.
// Without --seed the seed is derived from the visitor and landing host, so a
// visitor sees the same order on every run.
func chainInputs(cmd *cobra.Command) (chain.Config, chain.Profile, uint64, error) {
	cfg, err := chain.LoadConfig(chainConfig)
	if err != nil {
		return chain.Config{}, chain.Profile{}, 0, err
	}
	p, err := chain.ProfileByName(chainProfile)
	if err != nil {
		return chain.Config{}, chain.Profile{}, 0, err
	}
	seed := chainSeed
	if !cmd.Flags().Changed("seed") {
		seed = chain.SeedFor(chainVisitor, chainCurrent)
	}
	return cfg, p, seed, nil
}

type walkSink interface {
	chain.Navigator
	chain.Injector
}

// teeSink forwards every call to each sink in order.
type teeSink []walkSink

func (t teeSink) Navigate(url string) {
	for _, s := range t {
		s.Navigate(url)
	}
}

func (t teeSink) Inject(domain string, placement rules.Placement, script string) {
	for _, s := range t {
		s.Inject(domain, placement, script)
	}
}

func init() {
	for _, cmd := range []*cobra.Command{chainPlanCmd, chainSimulateCmd} {
		cmd.Flags().StringVar(&chainConfig, "config", "chain.yaml", "Chain file (fallback and domain groups)")
		cmd.Flags().StringVar(&chainProfile, "profile", chain.Sequential.Name, "Chain profile (sequential, shuffled)")
		cmd.Flags().StringVar(&chainCurrent, "current", "", "Host the visitor lands on; it is left out of the chain")
		cmd.Flags().StringVar(&chainVisitor, "visitor", "", "Visitor ID used to derive the seed")
		cmd.Flags().Uint64Var(&chainSeed, "seed", 0, "Random seed (overrides --visitor)")
		chainCmd.AddCommand(cmd)
	}
	chainSimulateCmd.Flags().BoolVar(&chainLive, "live", false, "Use the real clock")
	rootCmd.AddCommand(chainCmd)
}

