package consolidation_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
	"lineageconsolidator/src/infra/memgraph"
	"lineageconsolidator/src/services/buffer"
	"lineageconsolidator/src/services/consolidation"
	"lineageconsolidator/src/test_artefacts/stubs"
)

var _ = Describe("ConsolidationService", func() {
	var (
		ctx         context.Context
		bufferGraph *memgraph.Graph
		mainGraph   *memgraph.Graph
		publisher   *fakePublisher
		invalidator *fakeInvalidator
		config      consolidation.Config
	)

	newService := func() *consolidation.ConsolidationService {
		return consolidation.NewConsolidationService(discardLogger(), bufferGraph, mainGraph, config, publisher, invalidator)
	}

	BeforeEach(func() {
		ctx = context.Background()
		bufferGraph = memgraph.New("buffer")
		mainGraph = memgraph.New("main")
		publisher = &fakePublisher{}
		invalidator = &fakeInvalidator{}
		config = consolidation.Config{MaxHops: consolidation.DefaultMaxHops, Workers: 1}
	})

	Context("RunSweep", func() {
		When("a process maps two columns between two tables", func() {
			var scenario stubs.LineageScenario

			BeforeEach(func() {
				scenario = stubs.NewLineageScenarioStub().WithColumns(2).Get()
				ingestScenarios(ctx, bufferGraph, scenario)
			})

			It("materializes one sub process per column pair", func() {
				// ACT
				report, err := newService().RunSweep(ctx)

				// ASSERT
				Expect(err).NotTo(HaveOccurred())
				Expect(report).To(Equal(domain.SweepReport{Processes: 1, Pairs: 2, Merged: 2}))

				// processo, 4 colunas, 2 tabelas e 2 subprocessos
				Expect(mainGraph.VertexCount()).To(Equal(9))
				Expect(edgesByLabel(mainGraph, domain.MainEdgeDataFlowWithProcess)).To(HaveLen(6))
				// 2 subprocessos no processo e 4 colunas nas tabelas
				Expect(edgesByLabel(mainGraph, domain.MainEdgeIncludedIn)).To(HaveLen(6))

				subProcesses := 0
				for _, vertex := range mainGraph.Vertices() {
					if vertex.Label != domain.MainLabelSubProcess {
						continue
					}
					subProcesses++
					Expect(vertex.Properties).To(HaveKeyWithValue(domain.PropProcessGUID, scenario.Process.GUID))
					Expect(vertex.Properties).To(HaveKeyWithValue(domain.PropMainDisplayName, scenario.Process.Properties["displayName"]))
				}
				Expect(subProcesses).To(Equal(2))
			})

			It("links tables to the process by data flow", func() {
				// ACT
				_, err := newService().RunSweep(ctx)
				Expect(err).NotTo(HaveOccurred())

				// ASSERT
				tx, err := mainGraph.Begin(ctx)
				Expect(err).NotTo(HaveOccurred())
				defer tx.Rollback(ctx)

				intoProcess, err := tx.HasEdge(ctx, scenario.SourceTable.GUID, scenario.Process.GUID, domain.MainEdgeDataFlowWithProcess)
				Expect(err).NotTo(HaveOccurred())
				Expect(intoProcess).To(BeTrue())

				outOfProcess, err := tx.HasEdge(ctx, scenario.Process.GUID, scenario.TargetTable.GUID, domain.MainEdgeDataFlowWithProcess)
				Expect(err).NotTo(HaveOccurred())
				Expect(outOfProcess).To(BeTrue())

				for _, column := range append(scenario.SourceColumns, scenario.TargetColumns...) {
					tables, err := tx.Neighbors(ctx, column.GUID, domain.Out, domain.MainEdgeIncludedIn)
					Expect(err).NotTo(HaveOccurred())
					Expect(tables).To(HaveLen(1))
				}
			})

			It("enriches columns and tables with the names of their containers", func() {
				// ACT
				_, err := newService().RunSweep(ctx)
				Expect(err).NotTo(HaveOccurred())

				// ASSERT
				column := findVertex(ctx, mainGraph, scenario.SourceColumns[0].GUID)
				Expect(column.Label).To(Equal(domain.MainLabelColumn))
				Expect(column.Properties).To(HaveKeyWithValue(domain.PropNodeID, scenario.SourceColumns[0].GUID))
				Expect(column.Properties).To(HaveKeyWithValue(domain.PropMainDisplayName, "source-column-0"))
				Expect(column.Properties).To(HaveKeyWithValue(domain.PropTableDisplayName, scenario.SourceTable.Properties["displayName"]))
				Expect(column.Properties).To(HaveKeyWithValue(domain.PropSchemaTypeDisplayName, "source-table-type"))
				Expect(column.Properties).To(HaveKeyWithValue(domain.PropSchemaDisplayName, scenario.Schema.Properties["displayName"]))
				Expect(column.Properties).To(HaveKeyWithValue(domain.PropDatabaseDisplayName, scenario.Database.Properties["displayName"]))

				table := findVertex(ctx, mainGraph, scenario.TargetTable.GUID)
				Expect(table.Label).To(Equal(domain.MainLabelTable))
				Expect(table.Properties).To(HaveKeyWithValue(domain.PropSchemaDisplayName, scenario.Schema.Properties["displayName"]))
				Expect(table.Properties).To(HaveKeyWithValue(domain.PropDatabaseDisplayName, scenario.Database.Properties["displayName"]))
			})

			It("does not grow the main graph on a second sweep", func() {
				// ARRANGE
				service := newService()
				_, err := service.RunSweep(ctx)
				Expect(err).NotTo(HaveOccurred())
				vertices, edges := mainGraph.VertexCount(), mainGraph.EdgeCount()

				// ACT
				report, err := service.RunSweep(ctx)

				// ASSERT
				Expect(err).NotTo(HaveOccurred())
				Expect(report).To(Equal(domain.SweepReport{Processes: 1, Pairs: 2, AlreadyMerged: 2}))
				Expect(mainGraph.VertexCount()).To(Equal(vertices))
				Expect(mainGraph.EdgeCount()).To(Equal(edges))
				Expect(publisher.Published()).To(HaveLen(2))
			})

			It("publishes one event per sub process and invalidates the touched nodes", func() {
				// ACT
				_, err := newService().RunSweep(ctx)
				Expect(err).NotTo(HaveOccurred())

				// ASSERT
				events := publisher.Published()
				Expect(events).To(HaveLen(2))
				for _, event := range events {
					Expect(event.EventID).NotTo(BeEmpty())
					Expect(event.ProcessGUID).To(Equal(scenario.Process.GUID))
					Expect(event.TablesResolved).To(BeTrue())
				}
				Expect([]string{events[0].ColumnInGUID, events[1].ColumnInGUID}).To(ConsistOf(
					scenario.SourceColumns[0].GUID,
					scenario.SourceColumns[1].GUID,
				))

				Expect(invalidator.Invalidated()).To(ContainElements(
					scenario.Process.GUID,
					scenario.SourceColumns[0].GUID,
					scenario.TargetColumns[1].GUID,
					scenario.SourceTable.GUID,
					events[0].SubProcessID,
				))
			})

			It("keeps the sweep result when the notifications fail", func() {
				// ARRANGE
				publisher.err = errors.New("broker down")

				// ACT
				report, err := newService().RunSweep(ctx)

				// ASSERT
				Expect(err).NotTo(HaveOccurred())
				Expect(report.Merged).To(Equal(2))
				Expect(mainGraph.VertexCount()).To(Equal(9))
			})
		})

		It("links glossary terms assigned to a column", func() {
			// ARRANGE
			scenario := stubs.NewLineageScenarioStub().WithGlossaryTerm().Get()
			ingestScenarios(ctx, bufferGraph, scenario)

			// ACT
			_, err := newService().RunSweep(ctx)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			term := findVertex(ctx, mainGraph, scenario.GlossaryTerm.GUID)
			Expect(term.Label).To(Equal(domain.MainLabelGlossaryTerm))

			assignments := edgesByLabel(mainGraph, domain.MainEdgeSemanticAssignment)
			Expect(assignments).To(HaveLen(1))
			Expect(assignments[0].FromKey).To(Equal(scenario.SourceColumns[0].GUID))
			Expect(assignments[0].ToKey).To(Equal(scenario.GlossaryTerm.GUID))
		})

		It("keeps column lineage when the tables cannot be resolved", func() {
			// ARRANGE
			ingestScenarios(ctx, bufferGraph, stubs.NewLineageScenarioStub().WithColumns(2).WithoutTables().Get())

			// ACT
			report, err := newService().RunSweep(ctx)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(report).To(Equal(domain.SweepReport{Processes: 1, Pairs: 2, Merged: 2, UnresolvedTables: 2}))
			// processo, 4 colunas e 2 subprocessos, sem tabelas
			Expect(mainGraph.VertexCount()).To(Equal(7))
			Expect(edgesByLabel(mainGraph, domain.MainEdgeDataFlowWithProcess)).To(HaveLen(4))

			for _, event := range publisher.Published() {
				Expect(event.TablesResolved).To(BeFalse())
			}
		})

		It("consolidates a column mapped straight into the schema of another column", func() {
			// ARRANGE
			scenario := stubs.NewDirectMappingScenario()
			ingestScenarios(ctx, bufferGraph, scenario.AsLineageScenario())

			// ACT
			report, err := newService().RunSweep(ctx)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(report).To(Equal(domain.SweepReport{Processes: 1, Pairs: 1, Merged: 1, UnresolvedTables: 1}))

			labels := make(map[string]int)
			var subProcess string
			for _, vertex := range mainGraph.Vertices() {
				labels[vertex.Label]++
				if vertex.Label == domain.MainLabelSubProcess {
					subProcess = vertex.Key
				}
			}
			Expect(labels).To(Equal(map[string]int{
				domain.MainLabelColumn:     2,
				domain.MainLabelProcess:    1,
				domain.MainLabelSubProcess: 1,
			}))

			type link struct{ from, label, to string }
			var links []link
			for _, edge := range mainGraph.Edges() {
				links = append(links, link{from: edge.FromKey, label: edge.Label, to: edge.ToKey})
			}
			Expect(links).To(ConsistOf(
				link{from: scenario.InputColumn.GUID, label: domain.MainEdgeDataFlowWithProcess, to: subProcess},
				link{from: subProcess, label: domain.MainEdgeDataFlowWithProcess, to: scenario.OutputColumn.GUID},
				link{from: subProcess, label: domain.MainEdgeIncludedIn, to: scenario.Process.GUID},
			))
		})

		It("counts input columns without an output as unresolved paths", func() {
			// ARRANGE
			scenario := stubs.NewLineageScenarioStub().WithColumns(2).Get()
			contexts := scenario.Contexts[:0]
			for _, graphContext := range scenario.Contexts {
				// corta o mapeamento atributo de entrada -> atributo de saída da primeira coluna
				if graphContext.FromVertex.GUID == scenario.InputAttributes[0].GUID {
					continue
				}
				contexts = append(contexts, graphContext)
			}
			scenario.Contexts = contexts
			ingestScenarios(ctx, bufferGraph, scenario)

			// ACT
			report, err := newService().RunSweep(ctx)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(report).To(Equal(domain.SweepReport{Processes: 1, Pairs: 2, Merged: 1, UnresolvedPaths: 1}))
			Expect(publisher.Published()).To(HaveLen(1))
			Expect(publisher.Published()[0].ColumnInGUID).To(Equal(scenario.SourceColumns[1].GUID))
		})

		It("consolidates chained processes through the shared table", func() {
			// ARRANGE
			config.Workers = 4
			first := stubs.NewLineageScenarioStub().WithColumns(2).Get()
			second := stubs.NewLineageScenarioStub().WithSourceOf(first).Get()
			ingestScenarios(ctx, bufferGraph, first, second)

			// ACT
			report, err := newService().RunSweep(ctx)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(report).To(Equal(domain.SweepReport{Processes: 2, Pairs: 4, Merged: 4}))
			// 2 processos, 6 colunas, 3 tabelas e 4 subprocessos
			Expect(mainGraph.VertexCount()).To(Equal(15))
			Expect(mainGraph.EdgeCount()).To(Equal(22))

			tx, err := mainGraph.Begin(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer tx.Rollback(ctx)

			readers, err := tx.Neighbors(ctx, first.TargetTable.GUID, domain.Out, domain.MainEdgeDataFlowWithProcess)
			Expect(err).NotTo(HaveOccurred())
			Expect(readers).To(HaveLen(1))
			Expect(readers[0].Key).To(Equal(second.Process.GUID))
		})

		It("consolidates in parallel processes that read the same table", func() {
			// ARRANGE
			config.Workers = 4
			first := stubs.NewLineageScenarioStub().WithColumns(2).Get()
			shared := stubs.LineageScenario{TargetTable: first.SourceTable, TargetColumns: first.SourceColumns}
			second := stubs.NewLineageScenarioStub().WithSourceOf(shared).Get()
			ingestScenarios(ctx, bufferGraph, first, second)

			// ACT
			report, err := newService().RunSweep(ctx)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(report).To(Equal(domain.SweepReport{Processes: 2, Pairs: 4, Merged: 4}))
			// 2 processos, 6 colunas, 3 tabelas e 4 subprocessos
			Expect(mainGraph.VertexCount()).To(Equal(15))
			Expect(mainGraph.EdgeCount()).To(Equal(22))

			tx, err := mainGraph.Begin(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer tx.Rollback(ctx)

			readers, err := tx.Neighbors(ctx, first.SourceTable.GUID, domain.Out, domain.MainEdgeDataFlowWithProcess)
			Expect(err).NotTo(HaveOccurred())
			Expect(readers).To(HaveLen(2))
		})

		It("sweeps while the buffer graph keeps receiving newer versions", func() {
			// ARRANGE
			config.Workers = 4
			scenario := stubs.NewLineageScenarioStub().WithColumns(2).Get()
			ingestScenarios(ctx, bufferGraph, scenario)
			bufferService := buffer.NewBufferService(discardLogger(), bufferGraph)
			service := newService()

			updated := append([]entities.LineageEntity{scenario.Process}, scenario.SourceColumns...)
			updated = append(updated, scenario.TargetColumns...)

			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)

				for version := int64(2); version <= 20; version++ {
					for _, entity := range updated {
						entity.Version = version
						_, err := bufferService.UpsertVertex(ctx, entity)
						Expect(err).NotTo(HaveOccurred())
					}
				}
			}()

			// ACT
			for range 10 {
				report, err := service.RunSweep(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(report.Failures).To(BeZero())
			}
			Eventually(done).Should(BeClosed())

			// ASSERT
			report, err := service.RunSweep(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report).To(Equal(domain.SweepReport{Processes: 1, Pairs: 2, AlreadyMerged: 2}))
			Expect(edgesByLabel(mainGraph, domain.MainEdgeIncludedIn)).To(HaveLen(6))
			Expect(mainGraph.VertexCount()).To(Equal(9))
		})

		It("does nothing on an empty buffer graph", func() {
			report, err := newService().RunSweep(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(report).To(Equal(domain.SweepReport{}))
			Expect(mainGraph.VertexCount()).To(BeZero())
		})

		It("refuses to start while another sweep is running", func() {
			// ARRANGE
			ingestScenarios(ctx, bufferGraph, stubs.NewLineageScenarioStub().Get())
			invalidator.release = make(chan struct{})
			invalidator.called = make(chan struct{})
			called := invalidator.called
			service := newService()

			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				_, err := service.RunSweep(ctx)
				Expect(err).NotTo(HaveOccurred())
			}()
			Eventually(called).Should(BeClosed())

			// ACT
			_, err := service.RunSweep(ctx)

			// ASSERT
			Expect(err).To(MatchError(domain.ErrSweepInProgress))

			close(invalidator.release)
			Eventually(done).Should(BeClosed())

			_, err = service.RunSweep(ctx)
			Expect(err).NotTo(HaveOccurred())
		})

		It("fails when the buffer graph cannot be read", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := newService().RunSweep(cancelled)

			Expect(err).To(MatchError(context.Canceled))
		})

		It("stops consolidating once the sweep timeout expires", func() {
			// ARRANGE
			config.SweepTimeout = time.Nanosecond
			ingestScenarios(ctx, bufferGraph, stubs.NewLineageScenarioStub().Get())

			// ACT
			report, err := newService().RunSweep(ctx)

			// ASSERT
			if err != nil {
				Expect(err).To(MatchError(context.DeadlineExceeded))
				return
			}
			Expect(report.Truncated).To(BeTrue())
		})
	})

	Context("MainGraphMerger", func() {
		It("creates a single sub process for the same triple", func() {
			// ARRANGE
			scenario := stubs.NewLineageScenarioStub().Get()
			ingestScenarios(ctx, bufferGraph, scenario)
			merger := consolidation.NewMainGraphMerger(discardLogger(), mainGraph)

			tx, err := bufferGraph.Begin(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer tx.Rollback(ctx)

			columnIn := findVertex(ctx, bufferGraph, scenario.SourceColumns[0].GUID)
			columnOut := findVertex(ctx, bufferGraph, scenario.TargetColumns[0].GUID)
			process := findVertex(ctx, bufferGraph, scenario.Process.GUID)

			// ACT
			first, err := merger.Merge(ctx, tx, columnIn, columnOut, process)
			Expect(err).NotTo(HaveOccurred())
			second, err := merger.Merge(ctx, tx, columnIn, columnOut, process)
			Expect(err).NotTo(HaveOccurred())

			// ASSERT
			Expect(first.Outcome).To(Equal(domain.MergeCreated))
			Expect(first.SubProcessID).NotTo(BeEmpty())
			Expect(first.TouchedNodeIDs).To(ContainElement(entities.NodeID(first.SubProcessID)))
			Expect(second.Outcome).To(Equal(domain.MergeAlreadyMerged))

			subProcess := findVertex(ctx, mainGraph, first.SubProcessID)
			Expect(subProcess.Properties).To(HaveKeyWithValue(domain.PropColumnInGUID, columnIn.Key))
			Expect(subProcess.Properties).To(HaveKeyWithValue(domain.PropColumnOutGUID, columnOut.Key))
		})
	})
})
