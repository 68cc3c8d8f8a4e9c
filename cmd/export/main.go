package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/atlekbai/feature_export/internal/config"
	"github.com/atlekbai/feature_export/internal/db"
	"github.com/atlekbai/feature_export/internal/filter"
	"github.com/atlekbai/feature_export/internal/query"
	"github.com/atlekbai/feature_export/internal/schema"
	"github.com/atlekbai/feature_export/internal/service"
)

type options struct {
	mappingFile  string
	featureTypes []string
	where        []string
	anyOf        bool
	queryFile    string
	limit        int
	count        bool
	workers      int
	pageSize     int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := newRootCommand(log).ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func newRootCommand(log *logrus.Logger) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "feature-export",
		Short:         "Export features from a city model database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.mappingFile, "mapping", config.MappingFile(), "schema mapping file (YAML)")
	flags.StringSliceVarP(&opts.featureTypes, "type", "t", nil, "feature type to export (repeatable, default all concrete feature types)")
	flags.StringArrayVarP(&opts.where, "where", "w", nil, "filter term path=op.value (repeatable)")
	flags.BoolVar(&opts.anyOf, "any", false, "combine --where terms with OR instead of AND")
	flags.StringVarP(&opts.queryFile, "query", "q", "", "query document (YAML), overrides --type and --where")
	flags.IntVar(&opts.limit, "limit", 0, "maximum number of features per type, 0 for all")

	run := &cobra.Command{
		Use:   "run",
		Short: "Export matching feature ids",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd.Context(), opts, log, cmd.OutOrStdout())
		},
	}
	run.Flags().BoolVar(&opts.count, "count", false, "resolve the total number of matching features")
	run.Flags().IntVar(&opts.workers, "workers", 0, "number of feature types exported concurrently (default EXPORT_WORKERS)")
	run.Flags().IntVar(&opts.pageSize, "page-size", 0, "ids fetched per query (default EXPORT_PAGE_SIZE)")

	sqlCmd := &cobra.Command{
		Use:   "sql",
		Short: "Print the compiled id query for each feature type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printSQL(cmd.OutOrStdout(), opts)
		},
	}

	cmd.AddCommand(run, sqlCmd)
	return cmd
}

func loadMapping(path string) (*schema.Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mapping: %w", err)
	}
	defer f.Close()
	return schema.LoadMapping(f)
}

// requests turns the flags or the query document into export requests.
// Without --type every concrete feature type of the mapping is requested.
func requests(opts *options, mapping *schema.Mapping) ([]service.Request, error) {
	if opts.queryFile != "" {
		f, err := os.Open(opts.queryFile)
		if err != nil {
			return nil, fmt.Errorf("open query: %w", err)
		}
		defer f.Close()

		q, err := filter.Decode(f)
		if err != nil {
			return nil, err
		}
		return []service.Request{{FeatureType: q.FeatureType, Filter: q.Filter, Limit: q.Limit, Count: opts.count}}, nil
	}

	names := opts.featureTypes
	if len(names) == 0 {
		for _, ft := range mapping.FeatureTypes() {
			names = append(names, ft.Name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("the mapping defines no concrete feature types")
	}

	var terms []filter.Condition
	for _, w := range opts.where {
		c, err := filter.ParseTerm(w)
		if err != nil {
			return nil, err
		}
		terms = append(terms, c)
	}
	cond := filter.AllOf(terms...)
	if opts.anyOf {
		cond = filter.AnyOf(terms...)
	}

	reqs := make([]service.Request, len(names))
	for i, name := range names {
		reqs[i] = service.Request{FeatureType: name, Filter: cond, Limit: opts.limit, Count: opts.count}
	}
	return reqs, nil
}

func printSQL(out io.Writer, opts *options) error {
	mapping, err := loadMapping(opts.mappingFile)
	if err != nil {
		return err
	}
	reqs, err := requests(opts, mapping)
	if err != nil {
		return err
	}

	builder := query.NewBuilder(mapping)
	for _, req := range reqs {
		ft, err := builder.FeatureType(req.FeatureType)
		if err != nil {
			return err
		}
		res, err := builder.BuildIDQuery(ft, req.Filter, query.Options{Limit: uint64(req.Limit)})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "-- %s (joins: %d, distinct: %t)\n%s;\n-- args: %v\n", ft.Name, res.Joins, res.Distinct, res.SQL, res.Args)
	}
	return nil
}

func runExport(ctx context.Context, opts *options, log *logrus.Logger, out io.Writer) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.SetLevel(cfg.LogLevel)
	cfg.MappingFile = opts.mappingFile
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.pageSize > 0 {
		cfg.PageSize = opts.pageSize
	}

	mapping, err := loadMapping(cfg.MappingFile)
	if err != nil {
		return err
	}
	log.Infof("schema mapping loaded: %d types", mapping.TypeCount())

	reqs, err := requests(opts, mapping)
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.MaxConns())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	sink := newLineSink(out)
	defer func() {
		if ferr := sink.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("flush output: %w", ferr)
		}
	}()

	svc := service.NewExportService(pool, mapping, log, service.Settings{
		PageSize: cfg.PageSize,
		Workers:  cfg.Workers,
	})

	reports, err := svc.ExportAll(ctx, reqs, sink)
	if err != nil {
		return err
	}

	var total int64
	for _, r := range reports {
		total += r.Exported
	}
	log.WithField("features", total).Info("export complete")
	return nil
}

// lineSink writes one "type<TAB>id<TAB>objectclass" line per feature. Writes
// are serialised since feature types export concurrently.
type lineSink struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func newLineSink(w io.Writer) *lineSink {
	return &lineSink{w: bufio.NewWriter(w)}
}

func (s *lineSink) Write(_ context.Context, ref service.FeatureRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s\t%d\t%d\n", ref.FeatureType, ref.ID, ref.ObjectClassID)
	return err
}

func (s *lineSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}
