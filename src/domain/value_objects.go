package domain

import (
	"errors"
	"fmt"
	"lineageconsolidator/src/domain/entities"
)

var (
	ErrEntityNotFound = errors.New("entity not found")

	ErrUnavailableServer = errors.New("Oops, something unexpected happened. Please try again later.")

	ErrVertexNotFound = errors.New("vertex not found")
	ErrEdgeNotFound   = errors.New("edge not found")

	// Tipos de erro do núcleo de consolidação.
	ErrMissingMandatoryAttribute = errors.New("missing mandatory attribute")
	ErrDuplicateFact             = errors.New("duplicate fact")
	ErrUnresolvedPath            = errors.New("unresolved column path")
	ErrUnresolvedTable           = errors.New("unresolved enclosing table")
	ErrStoreTransactionFailure   = errors.New("graph store transaction failure")

	ErrSweepInProgress = errors.New("consolidation sweep already in progress")
)

// MissingAttributeError identifica qual atributo obrigatório está ausente.
type MissingAttributeError struct {
	Attribute string
	Subject   string
}

func (e *MissingAttributeError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %s", ErrMissingMandatoryAttribute, e.Attribute)
	}
	return fmt.Sprintf("%s: %s (%s)", ErrMissingMandatoryAttribute, e.Attribute, e.Subject)
}

func (e *MissingAttributeError) Unwrap() error {
	return ErrMissingMandatoryAttribute
}

// StoreError marca falhas inesperadas ao conversar com um graph store.
func StoreError(operation string, err error) error {
	return fmt.Errorf("%s: %w: %w", operation, ErrStoreTransactionFailure, err)
}

// ############################################################
// ############# PROCESSO DE LEITURA DO LINEAGE ###############
// ############################################################

type LineageDirection string

const (
	DirectionUpstream   LineageDirection = "upstream"
	DirectionDownstream LineageDirection = "downstream"
	DirectionBoth       LineageDirection = "both"
)

func ParseLineageDirection(value string) (LineageDirection, error) {
	switch LineageDirection(value) {
	case "":
		return DirectionBoth, nil
	case DirectionUpstream, DirectionDownstream, DirectionBoth:
		return LineageDirection(value), nil
	default:
		return "", fmt.Errorf("invalid lineage direction: %q", value)
	}
}

// LineageGraph é o subgrafo do grafo main devolvido para os colaboradores de visualização.
type LineageGraph struct {
	RootID   string            `json:"root_id"`
	Vertices []entities.Vertex `json:"vertices"`
	Edges    []entities.Edge   `json:"edges"`
}

// ############################################################
// ############ PROCESSO DE CONSOLIDAÇÃO (SWEEP) ##############
// ############################################################

type MergeOutcome int

const (
	MergeCreated MergeOutcome = iota
	MergeAlreadyMerged
	MergeCreatedWithoutTables
)

func (o MergeOutcome) String() string {
	switch o {
	case MergeCreated:
		return "created"
	case MergeAlreadyMerged:
		return "already_merged"
	case MergeCreatedWithoutTables:
		return "created_without_tables"
	default:
		return "unknown"
	}
}

// MergeResult descreve o efeito de um merge(columnIn, columnOut, process).
type MergeResult struct {
	Outcome      MergeOutcome
	SubProcessID string
	// TouchedNodeIDs são os vértices main criados ou ligados por este merge.
	TouchedNodeIDs []entities.NodeID
}

// SweepReport resume uma execução de runSweep.
type SweepReport struct {
	Processes        int  `json:"processes"`
	Pairs            int  `json:"pairs"`
	Merged           int  `json:"merged"`
	AlreadyMerged    int  `json:"already_merged"`
	UnresolvedPaths  int  `json:"unresolved_paths"`
	UnresolvedTables int  `json:"unresolved_tables"`
	Failures         int  `json:"failures"`
	Truncated        bool `json:"truncated"`
}

func (r *SweepReport) Add(other SweepReport) {
	r.Processes += other.Processes
	r.Pairs += other.Pairs
	r.Merged += other.Merged
	r.AlreadyMerged += other.AlreadyMerged
	r.UnresolvedPaths += other.UnresolvedPaths
	r.UnresolvedTables += other.UnresolvedTables
	r.Failures += other.Failures
	r.Truncated = r.Truncated || other.Truncated
}

// ConsolidatedEvent é publicado quando um novo SubProcess é materializado no grafo main.
type ConsolidatedEvent struct {
	EventID        string `json:"event_id"`
	ProcessGUID    string `json:"process_guid"`
	SubProcessID   string `json:"sub_process_id"`
	ColumnInGUID   string `json:"column_in_guid"`
	ColumnOutGUID  string `json:"column_out_guid"`
	TablesResolved bool   `json:"tables_resolved"`
}
