// Package searchcmder provides the search command, which ranks a dataset by
// similarity to a query image.
package searchcmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hvision/cmd/hvision/jobenv"
	"github.com/papercomputeco/hvision/pkg/cliui"
	"github.com/papercomputeco/hvision/pkg/config"
	"github.com/papercomputeco/hvision/pkg/dataset"
	"github.com/papercomputeco/hvision/pkg/distance"
	"github.com/papercomputeco/hvision/pkg/dotdir"
	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/eventstream"
	"github.com/papercomputeco/hvision/pkg/search"
	"github.com/papercomputeco/hvision/pkg/similarity"
	"github.com/papercomputeco/hvision/pkg/utils"
	"github.com/papercomputeco/hvision/pkg/vocabulary"
)

const searchLongDesc string = `Rank a dataset by similarity to a query image.

Every record is scored against the query with the selected method:
  hist   global color histogram distance
  surf   share of query descriptors without a distinctive match
  bow    distance between Bag-of-Words descriptors (needs a vocabulary)

Results are written ascending by distance to <output>/part-r-00000 as records
keyed by the distance, with the original record key as value.

Examples:
  hvision search -i data/photos -o results -q query.png
  hvision search -i data/photos -o results -q s3://queries/q.jpg -m bow -c vocab.bin`

const searchShortDesc string = "Rank a dataset by similarity to a query image"

// defaultTop is the number of results printed after a search.
const defaultTop = 10

type searchCommander struct {
	input      string
	output     string
	query      string
	vocabulary string
	metric     string
	ratio      float64
	top        int
	keys       []string
}

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := jobenv.RequireFlags(cmd, "input", "output", "query"); err != nil {
				return err
			}
			env, err := jobenv.Load(cmd, cmder.keys)
			if err != nil {
				return err
			}
			defer env.Close()
			return cmder.run(cmd, env)
		},
	}

	cmd.Flags().StringVarP(&cmder.input, "input", "i", "", "Dataset file or directory")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Output directory for ranked records")
	cmd.Flags().StringVarP(&cmder.query, "query", "q", "", "Artifact location of the query image")
	cmd.Flags().StringVarP(&cmder.vocabulary, "vocabulary", "c", "", "Artifact location of the vocabulary for bow (default: last vocab run)")
	cmd.Flags().StringVar(&cmder.metric, "metric", "", "Histogram metric (l2, chi_square, bhattacharyya)")
	cmd.Flags().Float64Var(&cmder.ratio, "ratio", 0, "Ratio-test threshold of the surf method")
	cmd.Flags().IntVar(&cmder.top, "top", defaultTop, "Number of results to print")
	cmder.keys = jobenv.AddFlags(cmd,
		[]string{config.FlagMethod, config.FlagHistBins},
		jobenv.SchedulerFlags,
		jobenv.EventFlags,
	)

	return cmd
}

func (c *searchCommander) run(cmd *cobra.Command, env *jobenv.Env) error {
	ctx := cmd.Context()
	started := time.Now()

	sched, err := env.Scheduler()
	if err != nil {
		return err
	}

	kind, err := similarity.ParseKind(env.Config.Search.Method)
	if err != nil {
		return err
	}
	opts := &similarity.Opts{
		Kind:          kind,
		HistogramBins: int(env.Config.Search.HistBins),
		MatchRatio:    c.ratio,
	}
	if c.metric != "" {
		m, err := distance.ParseMetric(c.metric)
		if err != nil {
			return fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
		}
		opts.HistogramMetric = &m
	}

	var vocabLoc string
	if kind == similarity.KindBOW {
		vocabLoc, err = env.VocabularyLocation(c.vocabulary)
		if err != nil {
			return err
		}
		var vocab *vocabulary.Vocabulary
		vocab, err = env.LoadVocabulary(ctx, vocabLoc)
		if err != nil {
			return err
		}
		opts.Vocabulary = vocab
	}

	method, err := similarity.New(opts)
	if err != nil {
		return err
	}

	query, err := env.ReadArtifact(ctx, c.query)
	if err != nil {
		return err
	}
	coord, err := search.NewCoordinator(search.Config{
		Method:    method,
		Scheduler: sched,
		Logger:    env.Logger,
	}, query)
	if err != nil {
		return err
	}

	records, err := env.ReadInput(c.input)
	if err != nil {
		return err
	}

	var outcome *search.Outcome
	err = cliui.Step(cmd.ErrOrStderr(), fmt.Sprintf("Ranking %d records by %s", len(records), kind), func() error {
		var err error
		outcome, err = coord.Run(ctx, records)
		return err
	})
	if err != nil {
		return err
	}

	ranked := make([]dataset.Record, 0, len(outcome.Results))
	for _, r := range outcome.Results {
		ranked = append(ranked, r.Record())
	}
	path, err := env.WriteOutput(c.output, ranked)
	if err != nil {
		return err
	}

	event := eventstream.NewJobEvent(eventstream.EventTypeSearchCompleted, outcome.RunID, env.JobMeta("search", c.input, started))
	event.Counters = outcome.Counters
	event.Outputs = []string{path}
	env.Completed(ctx, event, dotdir.RunState{Output: path, Artifact: c.query})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n  %s %d results written to %s %s\n\n",
		cliui.SuccessMark,
		len(outcome.Results),
		cliui.ValueStyle.Render(path),
		cliui.DimStyle.Render("("+cliui.FormatDuration(time.Since(started))+")"),
	)
	for i, r := range outcome.Results {
		if i >= c.top {
			break
		}
		fmt.Fprintf(out, "  %s  %s\n",
			cliui.KeyStyle.Render(fmt.Sprintf("%.6f", r.Distance)),
			cliui.DimStyle.Render(utils.Truncate(r.Key, 72)),
		)
	}
	fmt.Fprintln(out)
	cliui.Counters(out, outcome.Counters)
	return nil
}
