package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/atlekbai/feature_export/internal/filter"
	"github.com/atlekbai/feature_export/internal/query"
	"github.com/atlekbai/feature_export/internal/schema"
)

// exactCountThreshold is the planner estimate below which we run an exact count.
const exactCountThreshold = 50_000

const (
	DefaultPageSize = 1000
	DefaultWorkers  = 4
)

// Querier is the subset of *pgxpool.Pool used by the export service.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FeatureRef identifies one exported feature. FeatureType names the concrete
// type of the row, which differs from the requested type when that type is
// abstract. Row mapping of the feature itself is left to the sink.
type FeatureRef struct {
	FeatureType   string
	ID            int64
	ObjectClassID int
}

// Sink receives exported features. Write is called concurrently when
// several feature types are exported at once.
type Sink interface {
	Write(ctx context.Context, ref FeatureRef) error
}

type SinkFunc func(ctx context.Context, ref FeatureRef) error

func (f SinkFunc) Write(ctx context.Context, ref FeatureRef) error { return f(ctx, ref) }

type Request struct {
	FeatureType string
	Filter      filter.Condition
	// Limit caps the number of exported features, 0 exports all.
	Limit int
	// Count resolves the total number of matching features alongside the export.
	Count bool
}

type Report struct {
	JobID       uuid.UUID
	FeatureType string
	Exported    int64
	// Total is -1 unless the request asked for a count.
	Total    int64
	Distinct bool
	Pages    int
}

type Settings struct {
	PageSize int
	Workers  int
}

type ExportService struct {
	db       Querier
	mapping  *schema.Mapping
	builder  *query.Builder
	log      *logrus.Logger
	pageSize int
	workers  int
}

func NewExportService(db Querier, mapping *schema.Mapping, log *logrus.Logger, settings Settings) *ExportService {
	if settings.PageSize <= 0 {
		settings.PageSize = DefaultPageSize
	}
	if settings.Workers <= 0 {
		settings.Workers = DefaultWorkers
	}
	return &ExportService{
		db:       db,
		mapping:  mapping,
		builder:  query.NewBuilder(mapping),
		log:      log,
		pageSize: settings.PageSize,
		workers:  settings.Workers,
	}
}

// Export streams the ids of all features matching req into sink.
func (s *ExportService) Export(ctx context.Context, req Request, sink Sink) (*Report, error) {
	ft, err := s.builder.FeatureType(req.FeatureType)
	if err != nil {
		return nil, err
	}

	report := &Report{JobID: uuid.New(), FeatureType: ft.Name, Total: -1}
	log := s.log.WithFields(logrus.Fields{"job": report.JobID, "feature_type": ft.Name})

	g, gctx := errgroup.WithContext(ctx)

	if req.Count {
		g.Go(func() error {
			total, err := s.resolveCount(gctx, ft, req.Filter)
			if err != nil {
				return fmt.Errorf("count: %w", err)
			}
			report.Total = total
			return nil
		})
	}

	g.Go(func() error {
		return s.page(gctx, ft, req, sink, report, log)
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("export %s: %w", ft.Name, err)
	}

	log.WithFields(logrus.Fields{
		"exported": report.Exported,
		"total":    report.Total,
		"pages":    report.Pages,
		"distinct": report.Distinct,
	}).Info("export finished")

	return report, nil
}

// ExportAll runs the requests concurrently, at most Workers at a time. Each
// worker compiles its own queries.
func (s *ExportService) ExportAll(ctx context.Context, reqs []Request, sink Sink) ([]*Report, error) {
	reports := make([]*Report, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, req := range reqs {
		g.Go(func() error {
			report, err := s.Export(gctx, req, sink)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// page walks the matching ids in keyset pages.
func (s *ExportService) page(ctx context.Context, ft *schema.Type, req Request, sink Sink, report *Report, log *logrus.Entry) error {
	var after int64

	for {
		size := s.pageSize
		if req.Limit > 0 {
			size = min(size, req.Limit-int(report.Exported))
		}
		if size <= 0 {
			return nil
		}

		res, err := s.builder.BuildIDQuery(ft, req.Filter, query.Options{Limit: uint64(size), AfterID: after})
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}
		report.Distinct = res.Distinct
		log.WithFields(logrus.Fields{"page": report.Pages, "sql": res.SQL}).Debug("running id query")

		rows, err := s.db.Query(ctx, res.SQL, res.Args...)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		refs, err := s.scanRefs(rows, ft)
		if err != nil {
			return fmt.Errorf("scan ids: %w", err)
		}
		report.Pages++

		for _, ref := range refs {
			if err := sink.Write(ctx, ref); err != nil {
				return fmt.Errorf("write feature %d: %w", ref.ID, err)
			}
			after = ref.ID
			report.Exported++
		}

		if len(refs) < size {
			return nil
		}
	}
}

// resolveCount uses the EXPLAIN trick for cheap estimation on large tables,
// falling back to exact count only when the planner estimate is small.
func (s *ExportService) resolveCount(ctx context.Context, ft *schema.Type, cond filter.Condition) (int64, error) {
	est, err := s.builder.BuildEstimate(ft, cond)
	if err != nil {
		return 0, err
	}

	var planJSON string
	err = s.db.QueryRow(ctx, "EXPLAIN (FORMAT JSON) "+est.SQL, est.Args...).Scan(&planJSON)
	if err != nil {
		return 0, fmt.Errorf("explain estimate: %w", err)
	}

	estimated := parsePlanRows(planJSON)
	if estimated > exactCountThreshold {
		return estimated, nil
	}

	count, err := s.exactCount(ctx, ft, cond)
	if err != nil {
		s.log.WithError(err).WithField("feature_type", ft.Name).Warn("exact count failed, using estimate")
		return estimated, nil
	}
	return count, nil
}

func (s *ExportService) exactCount(ctx context.Context, ft *schema.Type, cond filter.Condition) (int64, error) {
	cnt, err := s.builder.BuildCount(ft, cond)
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var count int64
	if err := s.db.QueryRow(ctx, cnt.SQL, cnt.Args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count query: %w", err)
	}
	return count, nil
}

func (s *ExportService) scanRefs(rows pgx.Rows, ft *schema.Type) ([]FeatureRef, error) {
	defer rows.Close()

	var results []FeatureRef
	for rows.Next() {
		r := FeatureRef{FeatureType: ft.Name}
		if err := rows.Scan(&r.ID, &r.ObjectClassID); err != nil {
			return nil, err
		}
		if concrete := s.mapping.GetByObjectClass(r.ObjectClassID); concrete != nil {
			r.FeatureType = concrete.Name
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func parsePlanRows(planJSON string) int64 {
	var plan []struct {
		Plan struct {
			PlanRows float64 `json:"Plan Rows"`
		} `json:"Plan"`
	}
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil || len(plan) == 0 {
		return 0
	}
	return int64(plan[0].Plan.PlanRows)
}
