// Package story defines the authored story data model and provides
// strict bundle parsing, validation, and the read-only repository the
// runtime reads structural data from.
package story

// VariableType is the declared type of an authored variable. Values are
// always stored as strings and coerced per type at evaluation time.
type VariableType string

const (
	VarString  VariableType = "STRING"
	VarNumber  VariableType = "NUMBER"
	VarBoolean VariableType = "BOOLEAN"
	VarURL     VariableType = "URL"
	VarImage   VariableType = "IMAGE"
)

// PassageType determines how a passage branches: via labeled choices or
// via a free-form response bound to a variable.
type PassageType string

const (
	PassageChoice PassageType = "CHOICE"
	PassageInput  PassageType = "INPUT"
)

// OriginType identifies what kind of node a route leaves from.
type OriginType string

const (
	OriginChoice  OriginType = "CHOICE"
	OriginInput   OriginType = "INPUT"
	OriginPassage OriginType = "PASSAGE"
)

// DestinationType identifies what kind of node a route points at.
type DestinationType string

const (
	DestinationPassage DestinationType = "PASSAGE"
	DestinationJump    DestinationType = "JUMP"
)

// ConditionOperator is a comparison applied to one route gate clause.
type ConditionOperator string

const (
	OpEQ  ConditionOperator = "EQ"
	OpNE  ConditionOperator = "NE"
	OpGT  ConditionOperator = "GT"
	OpGTE ConditionOperator = "GTE"
	OpLT  ConditionOperator = "LT"
	OpLTE ConditionOperator = "LTE"
)

// EffectOperator is a mutation applied to one variable when a route is taken.
type EffectOperator string

const (
	OpAssign   EffectOperator = "ASSIGN"
	OpAdd      EffectOperator = "ADD"
	OpSubtract EffectOperator = "SUBTRACT"
	OpMultiply EffectOperator = "MULTIPLY"
	OpDivide   EffectOperator = "DIVIDE"
)

// Variable is a typed authored variable. Immutable once authored; its
// initial value seeds every fresh playthrough snapshot.
type Variable struct {
	ID      string       `json:"id"      jsonschema:"required"`
	Title   string       `json:"title"   jsonschema:"required"`
	Type    VariableType `json:"type"    jsonschema:"required,enum=STRING,enum=NUMBER,enum=BOOLEAN,enum=URL,enum=IMAGE"`
	Initial string       `json:"initialValue"`
}

// Scene groups passages for structural navigation. The first passage of a
// scene is its default entry point.
type Scene struct {
	ID         string   `json:"id"    jsonschema:"required"`
	Title      string   `json:"title"`
	PassageIDs []string `json:"passages"`
}

// Passage is one node of narrative content. Content is templated text:
// paragraphs that may embed {expression} spans resolved against the
// current state snapshot at render time.
type Passage struct {
	ID        string      `json:"id"      jsonschema:"required"`
	SceneID   string      `json:"sceneId"`
	Type      PassageType `json:"type"    jsonschema:"required,enum=CHOICE,enum=INPUT"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	ChoiceIDs []string    `json:"choices,omitempty"`
	InputID   string      `json:"input,omitempty"`
	Terminal  bool        `json:"gameOver,omitempty"`
}

// Choice is a labeled exit point from a CHOICE passage.
type Choice struct {
	ID        string `json:"id"        jsonschema:"required"`
	PassageID string `json:"passageId" jsonschema:"required"`
	Title     string `json:"title"`
}

// Input binds a free-text response on an INPUT passage to a variable.
// A missing VariableID is an authoring error surfaced at validation and
// as a blocked transition at play time, never silently ignored.
type Input struct {
	ID         string `json:"id"        jsonschema:"required"`
	PassageID  string `json:"passageId" jsonschema:"required"`
	VariableID string `json:"variableId,omitempty"`
}

// Route is a directed, conditionally gated edge from a choice, input, or
// passage to a destination passage or jump. Routes may point back at
// previously visited passages; the story graph is cyclic.
type Route struct {
	ID              string          `json:"id"              jsonschema:"required"`
	OriginID        string          `json:"originId"        jsonschema:"required"`
	OriginType      OriginType      `json:"originType"      jsonschema:"required,enum=CHOICE,enum=INPUT,enum=PASSAGE"`
	DestinationID   string          `json:"destinationId"   jsonschema:"required"`
	DestinationType DestinationType `json:"destinationType" jsonschema:"required,enum=PASSAGE,enum=JUMP"`
}

// Condition is one clause of a route's gate. All conditions on a route
// are combined with logical AND.
type Condition struct {
	ID         string            `json:"id"         jsonschema:"required"`
	RouteID    string            `json:"routeId"    jsonschema:"required"`
	VariableID string            `json:"variableId" jsonschema:"required"`
	Operator   ConditionOperator `json:"operator"   jsonschema:"required,enum=EQ,enum=NE,enum=GT,enum=GTE,enum=LT,enum=LTE"`
	Operand    string            `json:"operand"`
}

// Effect is one ordered mutation applied to the state snapshot when a
// route is taken.
type Effect struct {
	ID         string         `json:"id"         jsonschema:"required"`
	RouteID    string         `json:"routeId"    jsonschema:"required"`
	VariableID string         `json:"variableId" jsonschema:"required"`
	Operator   EffectOperator `json:"operator"   jsonschema:"required,enum=ASSIGN,enum=ADD,enum=SUBTRACT,enum=MULTIPLY,enum=DIVIDE"`
	Operand    string         `json:"operand"`
}

// Jump is an indirection pointing at a scene and/or passage, used for
// cross-section navigation. A jump with no passage resolves to the first
// passage of its target scene.
type Jump struct {
	ID        string `json:"id" jsonschema:"required"`
	SceneID   string `json:"sceneId,omitempty"`
	PassageID string `json:"passageId,omitempty"`
}

// Metadata describes the story itself. JumpID, when set, names the jump
// that determines the starting destination of a fresh playthrough.
type Metadata struct {
	ID       string   `json:"id"    jsonschema:"required"`
	Title    string   `json:"title" jsonschema:"required"`
	JumpID   string   `json:"jump,omitempty"`
	SceneIDs []string `json:"scenes,omitempty"`
}
