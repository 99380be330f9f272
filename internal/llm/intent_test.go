package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centavobot/centavo/internal/common"
	"github.com/centavobot/centavo/internal/model"
	"github.com/centavobot/centavo/internal/service"
)

type stubClient struct {
	response string
	err      error
}

func (s *stubClient) Complete(_ context.Context, _, _ string) (string, error) {
	return s.response, s.err
}

func TestIntentParserParse(t *testing.T) {
	t.Run("well-formed output", func(t *testing.T) {
		parser := NewIntentParserWithClient(&stubClient{
			response: `{"action": "add_expense", "confidence": 0.9, "entities": {"amount": 50, "category": "comida"}}`,
		}, nil)

		intent, err := parser.Parse(context.Background(), "gastei 50 em comida", service.UserContext{}, "")
		require.NoError(t, err)
		assert.Equal(t, model.ActionAddExpense, intent.Action)
		assert.InDelta(t, 0.9, intent.Confidence, 1e-9)

		amount, ok := intent.Amount()
		require.True(t, ok)
		assert.InDelta(t, 50, amount, 1e-9)
		assert.Equal(t, "comida", intent.StringEntity("category"))
	})

	t.Run("fenced output still decodes", func(t *testing.T) {
		parser := NewIntentParserWithClient(&stubClient{
			response: "```json\n{\"action\": \"report\", \"confidence\": 0.8, \"entities\": {}}\n```",
		}, nil)

		intent, err := parser.Parse(context.Background(), "como foi o mês?", service.UserContext{}, "")
		require.NoError(t, err)
		assert.Equal(t, model.ActionReport, intent.Action)
	})

	t.Run("non-JSON output is a hard failure", func(t *testing.T) {
		parser := NewIntentParserWithClient(&stubClient{
			response: "Sure! That looks like an expense of fifty.",
		}, nil)

		_, err := parser.Parse(context.Background(), "gastei 50", service.UserContext{}, "")
		require.ErrorIs(t, err, common.ErrModelMalformed)
	})

	t.Run("schema violations are rejected", func(t *testing.T) {
		for name, response := range map[string]string{
			"missing confidence":     `{"action": "add_expense"}`,
			"confidence out of range": `{"action": "add_expense", "confidence": 1.7}`,
			"non-object entities":    `{"action": "add_expense", "confidence": 0.5, "entities": []}`,
		} {
			t.Run(name, func(t *testing.T) {
				parser := NewIntentParserWithClient(&stubClient{response: response}, nil)
				_, err := parser.Parse(context.Background(), "x", service.UserContext{}, "")
				assert.ErrorIs(t, err, common.ErrModelMalformed)
			})
		}
	})

	t.Run("phantom actions are rejected", func(t *testing.T) {
		parser := NewIntentParserWithClient(&stubClient{
			response: `{"action": "transfer_funds", "confidence": 0.9, "entities": {}}`,
		}, nil)

		_, err := parser.Parse(context.Background(), "x", service.UserContext{}, "")
		require.ErrorIs(t, err, common.ErrModelMalformed)
	})

	t.Run("transport errors propagate", func(t *testing.T) {
		parser := NewIntentParserWithClient(&stubClient{err: errors.New("connection refused")}, nil)

		_, err := parser.Parse(context.Background(), "x", service.UserContext{}, "")
		require.Error(t, err)
	})
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "bare object", raw: `{"a": 1}`, want: `{"a": 1}`},
		{name: "surrounding prose", raw: `Here you go: {"a": 1} hope that helps`, want: `{"a": 1}`},
		{name: "fenced", raw: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "no object", raw: "nothing here", wantErr: true},
		{name: "broken object", raw: `{"a": `, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
