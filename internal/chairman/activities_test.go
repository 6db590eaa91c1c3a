package chairman

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-council/internal/domain"
	"github.com/ahrav/go-council/internal/llm"
	"github.com/ahrav/go-council/pkg/activity"
	"github.com/ahrav/go-council/pkg/events"
)

type stubInvoker struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (s *stubInvoker) Invoke(_ context.Context, req *llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, req.Prompt)
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.reply, Model: req.Model}, nil
}

func newActivities(invoker llm.Invoker) *Activities {
	return NewActivities(activity.NewBaseActivities(events.NewNoOpEventSink()), invoker, 0, 0.2)
}

func aggregateInput() domain.AggregateInput {
	return domain.AggregateInput{
		ExchangeID:     uuid.NewString(),
		ConversationID: uuid.NewString(),
		Query:          "why is the sky blue?",
		ChairmanModel:  "google/gemini-3-pro-preview",
		Responses: []domain.ModelResponse{
			{Model: "a", Content: "rayleigh scattering"},
			{Model: "b", Content: "blue light scatters more"},
		},
		Survivors: domain.BidderSet{"a", "b"},
	}
}

func TestAggregate(t *testing.T) {
	invoker := &stubInvoker{
		reply: `{"aggregated_answer": "Rayleigh scattering favors short wavelengths.", "mcc": {"a": 55, "b": 45}}`,
	}
	acts := newActivities(invoker)

	out, err := acts.Aggregate(context.Background(), aggregateInput())
	require.NoError(t, err)

	assert.Equal(t, "Rayleigh scattering favors short wavelengths.", out.Evaluation.AggregatedAnswer)
	assert.Equal(t, map[string]float64{"a": 55, "b": 45}, out.Evaluation.MCC)
	assert.Nil(t, out.Evaluation.RawMCC, "in-tolerance split is not rescaled")
}

func TestAggregateRenormalizesOutOfToleranceSplit(t *testing.T) {
	invoker := &stubInvoker{
		reply: `{"aggregated_answer": "answer", "mcc": {"a": 60, "b": 60}}`,
	}
	acts := newActivities(invoker)

	out, err := acts.Aggregate(context.Background(), aggregateInput())
	require.NoError(t, err)

	assert.InDelta(t, 50.0, out.Evaluation.MCC["a"], 1e-9)
	assert.InDelta(t, 50.0, out.Evaluation.MCC["b"], 1e-9)
	assert.Equal(t, map[string]float64{"a": 60, "b": 60}, out.Evaluation.RawMCC)
}

func TestAggregateRepairsFencedOutput(t *testing.T) {
	invoker := &stubInvoker{
		reply: "```json\n{\"aggregated_answer\": \"answer\", \"mcc\": {\"a\": 50, \"b\": 50},}\n```",
	}
	acts := newActivities(invoker)

	out, err := acts.Aggregate(context.Background(), aggregateInput())
	require.NoError(t, err)
	assert.Equal(t, "answer", out.Evaluation.AggregatedAnswer)
}

func TestAggregateFatalCases(t *testing.T) {
	tests := []struct {
		name    string
		invoker *stubInvoker
		wantErr error
	}{
		{
			name:    "provider failure",
			invoker: &stubInvoker{err: &llm.ClientError{Type: llm.ErrorTypeTimeout}},
		},
		{
			name:    "malformed beyond repair",
			invoker: &stubInvoker{reply: "I think model a deserves the most credit."},
			wantErr: domain.ErrMalformedChairmanOutput,
		},
		{
			name:    "missing bidder in split",
			invoker: &stubInvoker{reply: `{"aggregated_answer": "x", "mcc": {"a": 100}}`},
			wantErr: domain.ErrMalformedChairmanOutput,
		},
		{
			name:    "empty aggregated answer",
			invoker: &stubInvoker{reply: `{"aggregated_answer": "", "mcc": {"a": 50, "b": 50}}`},
			wantErr: domain.ErrMalformedChairmanOutput,
		},
		{
			name:    "zero-sum split cannot rescale",
			invoker: &stubInvoker{reply: `{"aggregated_answer": "x", "mcc": {"a": 0, "b": 0}}`},
			wantErr: domain.ErrMCCSumOutOfTolerance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acts := newActivities(tt.invoker)
			_, err := acts.Aggregate(context.Background(), aggregateInput())
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func finalizeInput() domain.FinalizeInput {
	return domain.FinalizeInput{
		ExchangeID:       uuid.NewString(),
		ConversationID:   uuid.NewString(),
		Query:            "q",
		ChairmanModel:    "google/gemini-3-pro-preview",
		AggregatedAnswer: "the aggregate",
		InitialMCC:       map[string]float64{"a": 55, "b": 45},
		Responses: []domain.ModelResponse{
			{Model: "a", Content: "answer a"},
			{Model: "b", Content: "answer b"},
		},
		SelfEvaluations: []domain.SelfEvaluation{
			{Model: "a", ChairmanMCC: 55, SelfMCC: 70, Arguments: "unique sources"},
		},
		Survivors: domain.BidderSet{"a", "b"},
	}
}

func TestFinalize(t *testing.T) {
	invoker := &stubInvoker{
		reply: `{"decisions": {"a": 60, "b": 40}, "communications": {"a": 55, "b": 40}}`,
	}
	acts := newActivities(invoker)

	out, err := acts.Finalize(context.Background(), finalizeInput())
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"a": 60, "b": 40}, out.Decision.Decisions)
	assert.Equal(t, map[string]float64{"a": 55, "b": 40}, out.Decision.Communications)
}

func TestFinalizePromptShowsSilentBidderAsAccepting(t *testing.T) {
	invoker := &stubInvoker{
		reply: `{"decisions": {"a": 60, "b": 40}, "communications": {"a": 55, "b": 40}}`,
	}
	acts := newActivities(invoker)

	_, err := acts.Finalize(context.Background(), finalizeInput())
	require.NoError(t, err)

	require.Len(t, invoker.prompts, 1)
	assert.Contains(t, invoker.prompts[0], "unique sources")
	assert.Contains(t, invoker.prompts[0], "(no self-evaluation submitted)",
		"bidder b never self-evaluated; the chairman sees it as accepting")
}

func TestFinalizeFatalCases(t *testing.T) {
	tests := []struct {
		name    string
		invoker *stubInvoker
	}{
		{
			name:    "provider failure",
			invoker: &stubInvoker{err: &llm.ClientError{Type: llm.ErrorTypeProvider}},
		},
		{
			name:    "missing decision for a survivor",
			invoker: &stubInvoker{reply: `{"decisions": {"a": 60}, "communications": {"a": 55, "b": 40}}`},
		},
		{
			name:    "decision for unknown bidder",
			invoker: &stubInvoker{reply: `{"decisions": {"a": 60, "b": 40, "z": 10}, "communications": {"a": 55, "b": 40, "z": 10}}`},
		},
		{
			name:    "negative decision",
			invoker: &stubInvoker{reply: `{"decisions": {"a": -5, "b": 40}, "communications": {"a": 55, "b": 40}}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acts := newActivities(tt.invoker)
			_, err := acts.Finalize(context.Background(), finalizeInput())
			assert.Error(t, err)
		})
	}
}

func TestAggregatePromptNamesEveryModel(t *testing.T) {
	in := aggregateInput()
	prompt := aggregatePrompt(in.Query, in.Responses)

	assert.Contains(t, prompt, `"a": percentage value between 0 and 100`)
	assert.Contains(t, prompt, `"b": percentage value between 0 and 100`)
	assert.True(t, strings.Contains(prompt, "rayleigh scattering"))
}
