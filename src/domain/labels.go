package domain

// Labels (typeDefName) dos vértices do grafo buffer.
const (
	LabelProcess                = "Process"
	LabelPort                   = "Port"
	LabelPortAlias              = "PortAlias"
	LabelPortImplementation     = "PortImplementation"
	LabelDatabase               = "Database"
	LabelDeployedDatabaseSchema = "DeployedDatabaseSchema"
	LabelRelationalDBSchemaType = "RelationalDBSchemaType"
	LabelRelationalTable        = "RelationalTable"
	LabelRelationalTableType    = "RelationalTableType"
	LabelRelationalColumn       = "RelationalColumn"
	LabelTabularSchemaType      = "TabularSchemaType"
	LabelTabularColumn          = "TabularColumn"
	LabelDataFile               = "DataFile"
	LabelFileFolder             = "FileFolder"
	LabelConnection             = "Connection"
	LabelGlossaryTerm           = "GlossaryTerm"
)

// Labels do grafo main.
const (
	MainLabelColumn       = "Column"
	MainLabelTable        = "Table"
	MainLabelProcess      = "Process"
	MainLabelSubProcess   = "SubProcess"
	MainLabelGlossaryTerm = "GlossaryTerm"
)

// Tipos de relacionamento do grafo buffer.
const (
	EdgeProcessPort         = "ProcessPort"
	EdgePortDelegation      = "PortDelegation"
	EdgePortSchema          = "PortSchema"
	EdgeAttributeForSchema  = "AttributeForSchema"
	EdgeSchemaAttributeType = "SchemaAttributeType"
	EdgeLineageMapping      = "LineageMapping"
	EdgeSemanticAssignment  = "SemanticAssignment"
	EdgeAssetSchemaType     = "AssetSchemaType"
	EdgeDataContentForAsset = "DataContentForDataSet"
	EdgeNestedFile          = "NestedFile"
	EdgeFolderHierarchy     = "FolderHierarchy"
	EdgeConnectionToAsset   = "ConnectionToAsset"
)

// Tipos de aresta do grafo main.
const (
	MainEdgeDataFlowWithProcess = "data-flows-with-process"
	MainEdgeIncludedIn          = "included-in"
	MainEdgeSemanticAssignment  = "semantic-assignment"
)

// Chaves de propriedade dos vértices buffer (escritas pelo mapper).
const (
	PropGUID        = "guid"
	PropTypeDefName = "typeDefName"
	PropVersion     = "version"
	PropCreatedBy   = "createdBy"
	PropCreateTime  = "createTime"
	PropUpdatedBy   = "updatedBy"
	PropUpdateTime  = "updateTime"

	// Prefixo das propriedades livres da entidade, evita colisão com os atributos do núcleo.
	PropertyNamespace = "entity."

	PropDisplayName   = PropertyNamespace + "displayName"
	PropName          = PropertyNamespace + "name"
	PropQualifiedName = PropertyNamespace + "qualifiedName"
	PropPortType      = PropertyNamespace + "portType"

	PortTypeInput  = "INPUT_PORT"
	PortTypeOutput = "OUTPUT_PORT"
)

// Chaves de propriedade exclusivas do grafo main.
const (
	PropNodeID                = "node-id"
	PropProcessGUID           = "processGuid"
	PropMainDisplayName       = "displayName"
	PropTableDisplayName      = "tableDisplayName"
	PropSchemaTypeDisplayName = "schemaTypeDisplayName"
	PropSchemaDisplayName     = "schemaDisplayName"
	PropDatabaseDisplayName   = "databaseDisplayName"
	PropColumnInGUID          = "columnInGuid"
	PropColumnOutGUID         = "columnOutGuid"
)

// ColumnLabels são os labels buffer tratados como coluna.
var ColumnLabels = []string{LabelTabularColumn, LabelRelationalColumn}

// IsColumnLabel informa se o label é de uma coluna.
func IsColumnLabel(label string) bool {
	return label == LabelTabularColumn || label == LabelRelationalColumn
}
