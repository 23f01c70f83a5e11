package consolidation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// EventPublisher publica os SubProcess recém-materializados.
type EventPublisher interface {
	PublishConsolidated(ctx context.Context, events []domain.ConsolidatedEvent) error
}

// CacheInvalidator descarta leituras cacheadas que envolvem os nós tocados.
type CacheInvalidator interface {
	InvalidateNodes(ctx context.Context, nodeIDs []string) error
}

type Config struct {
	MaxHops      int
	Workers      int
	SweepTimeout time.Duration
}

type ConsolidationService struct {
	logger      *slog.Logger
	buffer      domain.PropertyGraph
	resolver    *ColumnPathResolver
	merger      *MainGraphMerger
	publisher   EventPublisher
	invalidator CacheInvalidator
	workers     int
	timeout     time.Duration
	running     atomic.Bool
}

// NewConsolidationService monta o núcleo de consolidação. publisher e invalidator são opcionais.
func NewConsolidationService(
	logger *slog.Logger,
	buffer domain.PropertyGraph,
	main domain.PropertyGraph,
	config Config,
	publisher EventPublisher,
	invalidator CacheInvalidator,
) *ConsolidationService {
	workers := config.Workers
	if workers <= 0 {
		workers = 1
	}

	return &ConsolidationService{
		logger:      logger,
		buffer:      buffer,
		resolver:    NewColumnPathResolver(config.MaxHops),
		merger:      NewMainGraphMerger(logger, main),
		publisher:   publisher,
		invalidator: invalidator,
		workers:     workers,
		timeout:     config.SweepTimeout,
	}
}

// RunSweep percorre todos os processos do grafo buffer e consolida cada par de colunas no grafo main.
// Falhas por par são contadas no relatório e não interrompem o sweep. Não é reentrante.
func (s *ConsolidationService) RunSweep(ctx context.Context) (domain.SweepReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return domain.SweepReport{}, domain.ErrSweepInProgress
	}
	defer s.running.Store(false)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()

	processes, err := s.listProcesses(ctx)
	if err != nil {
		return domain.SweepReport{}, err
	}

	var (
		report domain.SweepReport
		mu     sync.Mutex
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)

	for _, process := range processes {
		if groupCtx.Err() != nil {
			mu.Lock()
			report.Truncated = true
			mu.Unlock()
			break
		}

		group.Go(func() error {
			processReport := s.consolidateProcess(groupCtx, process)

			mu.Lock()
			report.Add(processReport)
			mu.Unlock()
			return nil
		})
	}

	_ = group.Wait()

	if ctx.Err() != nil {
		report.Truncated = true
	}

	s.logger.Info("Consolidation sweep finished",
		"processes", report.Processes,
		"pairs", report.Pairs,
		"merged", report.Merged,
		"already_merged", report.AlreadyMerged,
		"unresolved_paths", report.UnresolvedPaths,
		"unresolved_tables", report.UnresolvedTables,
		"failures", report.Failures,
		"truncated", report.Truncated,
		"duration", time.Since(started))

	return report, nil
}

func (s *ConsolidationService) listProcesses(ctx context.Context) ([]*entities.Vertex, error) {
	tx, err := s.buffer.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	return tx.FindVerticesByLabel(ctx, domain.LabelProcess)
}

// consolidateProcess trata um processo. Cada par (coluna de entrada, processo) usa sua própria
// transação no buffer para que uma falha não contamine os pares seguintes.
func (s *ConsolidationService) consolidateProcess(ctx context.Context, process *entities.Vertex) domain.SweepReport {
	report := domain.SweepReport{Processes: 1}

	inputs, err := s.inputColumns(ctx, process)
	if err != nil {
		s.logger.Error("Failed to discover input columns", "process_guid", process.Key, "error", err)
		report.Failures++
		return report
	}

	var (
		events  []domain.ConsolidatedEvent
		touched []string
	)

pairs:
	for _, input := range inputs {
		if ctx.Err() != nil {
			report.Truncated = true
			break
		}

		report.Pairs++

		output, result, err := s.consolidatePair(ctx, input, process)
		switch {
		case IsUnresolvedPath(err):
			s.logger.Debug("No output column for input column", "process_guid", process.Key, "column_in_guid", input.Key, "error", err)
			report.UnresolvedPaths++
			continue
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				report.Truncated = true
				break pairs
			}
			s.logger.Error("Failed to consolidate column pair", "process_guid", process.Key, "column_in_guid", input.Key, "error", err)
			report.Failures++
			continue
		}

		switch result.Outcome {
		case domain.MergeAlreadyMerged:
			report.AlreadyMerged++
			continue
		case domain.MergeCreatedWithoutTables:
			report.UnresolvedTables++
		}

		report.Merged++
		events = append(events, domain.ConsolidatedEvent{
			EventID:        uuid.NewString(),
			ProcessGUID:    process.Key,
			SubProcessID:   result.SubProcessID,
			ColumnInGUID:   input.Key,
			ColumnOutGUID:  output.Key,
			TablesResolved: result.Outcome == domain.MergeCreated,
		})
		for _, id := range result.TouchedNodeIDs {
			touched = append(touched, id.String())
		}
	}

	s.notify(ctx, process, events, touched)
	return report
}

func (s *ConsolidationService) inputColumns(ctx context.Context, process *entities.Vertex) ([]*entities.Vertex, error) {
	tx, err := s.buffer.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	return s.resolver.InputColumns(ctx, tx, process)
}

func (s *ConsolidationService) consolidatePair(ctx context.Context, input, process *entities.Vertex) (*entities.Vertex, domain.MergeResult, error) {
	tx, err := s.buffer.Begin(ctx)
	if err != nil {
		return nil, domain.MergeResult{}, err
	}
	defer tx.Rollback(ctx)

	output, err := s.resolver.ResolveOutputColumn(ctx, tx, input, process)
	if err != nil {
		return nil, domain.MergeResult{}, err
	}

	result, err := s.merger.Merge(ctx, tx, input, output, process)
	if err != nil {
		return nil, domain.MergeResult{}, err
	}

	s.logger.Debug("Merged column pair",
		"process_guid", process.Key,
		"column_in_guid", input.Key,
		"column_out_guid", output.Key,
		"outcome", result.Outcome.String())

	return output, result, nil
}

// notify é best effort: o grafo main já está gravado.
func (s *ConsolidationService) notify(ctx context.Context, process *entities.Vertex, events []domain.ConsolidatedEvent, touched []string) {
	if len(events) == 0 {
		return
	}

	// O prazo do sweep pode já ter vencido; as notificações não dependem dele.
	ctx = context.WithoutCancel(ctx)

	if s.invalidator != nil {
		if err := s.invalidator.InvalidateNodes(ctx, touched); err != nil {
			s.logger.Warn("Failed to invalidate lineage cache", "process_guid", process.Key, "error", err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishConsolidated(ctx, events); err != nil {
			s.logger.Warn("Failed to publish consolidated events", "process_guid", process.Key, "error", err)
		}
	}
}
