//go:build datagen_kafka_lineage_events
// +build datagen_kafka_lineage_events

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
	"lineageconsolidator/src/infra/kafka"

	"github.com/go-faker/faker/v4"
)

// generatedTable guarda uma tabela já publicada para ser lida por processos seguintes.
type generatedTable struct {
	schema    entities.LineageEntity
	table     entities.LineageEntity
	tableType entities.LineageEntity
	columns   []entities.LineageEntity
}

type eventBuilder struct {
	contexts []entities.GraphContext
}

func (b *eventBuilder) link(from, to entities.LineageEntity, relationshipType string) {
	b.contexts = append(b.contexts, entities.GraphContext{
		FromVertex:       from,
		ToVertex:         to,
		RelationshipGUID: faker.UUIDHyphenated(),
		RelationshipType: relationshipType,
	})
}

func newEntity(typeDefName string, name string, extra ...string) entities.LineageEntity {
	createdBy := faker.Username()
	createTime := time.Now().UTC().Add(-time.Duration(rand.Intn(72)) * time.Hour)

	properties := map[string]string{
		"name":          name,
		"displayName":   name,
		"qualifiedName": fmt.Sprintf("%s::%s", strings.ToLower(typeDefName), name),
	}
	for i := 0; i+1 < len(extra); i += 2 {
		properties[extra[i]] = extra[i+1]
	}

	return entities.LineageEntity{
		GUID:        faker.UUIDHyphenated(),
		TypeDefName: typeDefName,
		Version:     1,
		CreatedBy:   &createdBy,
		CreateTime:  &createTime,
		Properties:  properties,
	}
}

func generateTable(b *eventBuilder, schema entities.LineageEntity, columns int) generatedTable {
	tableName := fmt.Sprintf("%s_%d", faker.Word(), rand.Intn(10000))
	table := generatedTable{
		schema:    schema,
		table:     newEntity(domain.LabelRelationalTable, tableName),
		tableType: newEntity(domain.LabelRelationalTableType, tableName+"_type"),
	}

	b.link(schema, table.table, domain.EdgeAttributeForSchema)
	b.link(table.table, table.tableType, domain.EdgeSchemaAttributeType)

	for i := 0; i < columns; i++ {
		column := newEntity(domain.LabelRelationalColumn, fmt.Sprintf("%s_%s", faker.Word(), faker.Word()))
		table.columns = append(table.columns, column)
		b.link(table.tableType, column, domain.EdgeAttributeForSchema)
	}

	return table
}

func generatePort(b *eventBuilder, process entities.LineageEntity, portType string, columns int) []entities.LineageEntity {
	alias := newEntity(domain.LabelPortAlias, process.Properties["name"]+"_"+portType, "portType", portType)
	implementation := newEntity(domain.LabelPortImplementation, process.Properties["name"]+"_"+portType+"_impl", "portType", portType)
	schemaType := newEntity(domain.LabelTabularSchemaType, process.Properties["name"]+"_"+portType+"_schema")

	b.link(process, alias, domain.EdgeProcessPort)
	b.link(alias, implementation, domain.EdgePortDelegation)
	b.link(implementation, schemaType, domain.EdgePortSchema)

	attributes := make([]entities.LineageEntity, columns)
	for i := range attributes {
		attributes[i] = newEntity(domain.LabelTabularColumn, fmt.Sprintf("%s_attr_%d", portType, i))
		b.link(schemaType, attributes[i], domain.EdgeAttributeForSchema)
	}
	return attributes
}

// generateEvent cria um processo que lê source (ou uma tabela nova) e escreve numa tabela nova.
func generateEvent(database, schema entities.LineageEntity, source *generatedTable, glossary []entities.LineageEntity) (entities.LineageEvent, generatedTable) {
	b := &eventBuilder{}
	b.link(database, schema, domain.EdgeDataContentForAsset)

	columns := 1 + rand.Intn(5)
	if source == nil {
		created := generateTable(b, schema, columns)
		source = &created
	} else {
		// Reenvia o contexto da tabela lida: cada evento é autossuficiente.
		b.link(source.schema, source.table, domain.EdgeAttributeForSchema)
		b.link(source.table, source.tableType, domain.EdgeSchemaAttributeType)
		for _, column := range source.columns {
			b.link(source.tableType, column, domain.EdgeAttributeForSchema)
		}
		columns = len(source.columns)
	}

	target := generateTable(b, schema, columns)

	process := newEntity(domain.LabelProcess, fmt.Sprintf("job_%s_%d", faker.Word(), rand.Intn(100000)))
	inputs := generatePort(b, process, domain.PortTypeInput, columns)
	outputs := generatePort(b, process, domain.PortTypeOutput, columns)

	for i := 0; i < columns; i++ {
		b.link(source.columns[i], inputs[i], domain.EdgeLineageMapping)
		b.link(inputs[i], outputs[i], domain.EdgeLineageMapping)
		b.link(outputs[i], target.columns[i], domain.EdgeLineageMapping)
	}

	// 20% das colunas de destino recebem um termo de glossário
	for _, column := range target.columns {
		if len(glossary) > 0 && rand.Float32() < 0.2 {
			b.link(column, glossary[rand.Intn(len(glossary))], domain.EdgeSemanticAssignment)
		}
	}

	return entities.LineageEvent{EventID: faker.UUIDHyphenated(), Contexts: b.contexts}, target
}

func main() {
	totalEvents := flag.Int("count", 100, "Total number of lineage events to generate. Use -1 for infinite.")
	batchSize := flag.Int("batch-size", 10, "Number of events per batch")
	topic := flag.String("topic", "lineage.events", "Kafka topic to send events to")
	brokers := flag.String("brokers", "", "Kafka brokers (comma-separated) (required)")
	chainRatio := flag.Float64("chain-ratio", 0.6, "Probability that a process reads the table written by a previous one")
	delayMs := flag.Int("delay-ms", 100, "Delay in milliseconds between batches")
	flag.Parse()

	if *brokers == "" {
		log.Fatal("The 'brokers' flag is required")
	}

	isInfinite := *totalEvents == -1
	if isInfinite {
		log.Printf("Starting lineage datagen in INFINITE mode with batches of %d", *batchSize)
	} else {
		log.Printf("Starting lineage datagen with %d events in batches of %d", *totalEvents, *batchSize)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Sem group id: só producer
	kafkaClient, err := kafka.NewKafkaClient(logger, *brokers, "", *batchSize)
	if err != nil {
		log.Fatalf("Failed to create Kafka client: %v", err)
	}
	defer kafkaClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal, stopping...")
		cancel()
	}()

	database := newEntity(domain.LabelDatabase, "dw_"+faker.Word())
	schemas := []entities.LineageEntity{
		newEntity(domain.LabelDeployedDatabaseSchema, "raw"),
		newEntity(domain.LabelDeployedDatabaseSchema, "trusted"),
		newEntity(domain.LabelDeployedDatabaseSchema, "refined"),
	}
	glossary := make([]entities.LineageEntity, 5)
	for i := range glossary {
		glossary[i] = newEntity(domain.LabelGlossaryTerm, faker.Word())
	}

	var written []generatedTable
	eventsSent := 0
	startTime := time.Now()

	for isInfinite || eventsSent < *totalEvents {
		select {
		case <-ctx.Done():
			log.Println("Shutdown requested, stopping event generation")
			return
		default:
		}

		currentBatchSize := *batchSize
		if !isInfinite && *totalEvents-eventsSent < currentBatchSize {
			currentBatchSize = *totalEvents - eventsSent
		}

		messages := make([]kafka.Message, 0, currentBatchSize)
		for i := 0; i < currentBatchSize; i++ {
			var source *generatedTable
			if len(written) > 0 && rand.Float64() < *chainRatio {
				source = &written[rand.Intn(len(written))]
			}

			event, target := generateEvent(database, schemas[rand.Intn(len(schemas))], source, glossary)
			written = append(written, target)

			eventBytes, err := json.Marshal(event)
			if err != nil {
				log.Printf("Failed to marshal event: %v", err)
				continue
			}

			messages = append(messages, kafka.Message{
				Key:     event.EventID,
				Value:   eventBytes,
				Headers: map[string]string{"event_type": "lineage.event", "source_service": "datagen"},
			})
		}

		if err := kafkaClient.Producer(messages, *topic); err != nil {
			log.Printf("Failed to send batch: %v", err)
			continue
		}

		eventsSent += len(messages)

		if eventsSent%100 == 0 || (!isInfinite && eventsSent == *totalEvents) {
			rate := float64(eventsSent) / time.Since(startTime).Seconds()
			log.Printf("Sent %d events (%.1f events/sec)", eventsSent, rate)
		}

		if *delayMs > 0 && (isInfinite || eventsSent < *totalEvents) {
			time.Sleep(time.Duration(*delayMs) * time.Millisecond)
		}
	}

	elapsed := time.Since(startTime)
	log.Printf("✅ Completed! Sent %d events in %v (%.1f events/sec)", eventsSent, elapsed, float64(eventsSent)/elapsed.Seconds())
}
