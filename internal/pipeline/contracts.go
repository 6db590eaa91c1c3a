package pipeline

import (
	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-council/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// BeginRunInput opens (or resumes) the single in-flight exchange of a
// conversation.
type BeginRunInput struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid4"`
	Query          string `json:"query" validate:"required,min=1"`
}

// Validate checks the input against its structural constraints.
func (i *BeginRunInput) Validate() error { return validate.Struct(i) }

// BeginRunOutput carries the exchange the run will drive. Resumed is set
// when the exchange was recovered from a checkpoint instead of created.
type BeginRunOutput struct {
	Exchange domain.Exchange `json:"exchange"`
	Resumed  bool            `json:"resumed"`
}

// CheckpointInput persists one stage's output before the next stage runs.
// Stage names the stage that produced the patch; its completion event is
// published once the patch is durable.
type CheckpointInput struct {
	ConversationID string             `json:"conversation_id" validate:"required,uuid4"`
	ExchangeID     string             `json:"exchange_id" validate:"required,uuid4"`
	Stage          domain.Stage       `json:"stage" validate:"required"`
	Field          domain.StageField  `json:"field" validate:"required"`
	Patch          *domain.StagePatch `json:"patch" validate:"required"`
}

// Validate checks the input against its structural constraints.
func (i *CheckpointInput) Validate() error { return validate.Struct(i) }

// CheckpointOutput carries the exchange as persisted, stage marker advanced.
type CheckpointOutput struct {
	Exchange domain.Exchange `json:"exchange"`
}

// StageStartedInput announces a stage on the event stream before its
// external calls begin.
type StageStartedInput struct {
	ConversationID string       `json:"conversation_id" validate:"required,uuid4"`
	ExchangeID     string       `json:"exchange_id" validate:"required,uuid4"`
	Stage          domain.Stage `json:"stage" validate:"required"`
}

// Validate checks the input against its structural constraints.
func (i *StageStartedInput) Validate() error { return validate.Struct(i) }

// FinishRunInput closes a settled exchange: the aggregated answer becomes
// the assistant message and the conversation returns to idle.
type FinishRunInput struct {
	ConversationID   string `json:"conversation_id" validate:"required,uuid4"`
	ExchangeID       string `json:"exchange_id" validate:"required,uuid4"`
	AggregatedAnswer string `json:"aggregated_answer" validate:"required"`
}

// Validate checks the input against its structural constraints.
func (i *FinishRunInput) Validate() error { return validate.Struct(i) }

// FailRunInput reports a fatal stage failure on the event stream. The
// conversation deliberately stays in processing: the checkpointed exchange
// is still open and a later run resumes it from the failed stage.
type FailRunInput struct {
	ConversationID string       `json:"conversation_id" validate:"required,uuid4"`
	ExchangeID     string       `json:"exchange_id" validate:"required,uuid4"`
	Stage          domain.Stage `json:"stage" validate:"required"`
	Reason         string       `json:"reason" validate:"required"`
}

// Validate checks the input against its structural constraints.
func (i *FailRunInput) Validate() error { return validate.Struct(i) }
