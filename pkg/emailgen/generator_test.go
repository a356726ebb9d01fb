package emailgen

import (
	"context"
	"testing"

	"github.com/jordanlanch/leadpilot/pkg/logger"
	"github.com/jordanlanch/leadpilot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateGenerator(t *testing.T) {
	g := &TemplateGenerator{}
	lead := &models.Lead{Name: "Ada", Email: "ada@test.com", Company: "Analytical Engines"}

	t.Run("First follow-up", func(t *testing.T) {
		email, err := g.GenerateFollowUp(context.Background(), lead, "<p>original</p>", "professional", 1)
		require.NoError(t, err)
		assert.Equal(t, "Following up, Ada", email.Subject)
		assert.Contains(t, email.Content, "Hi Ada")
	})

	t.Run("Later follow-ups carry the ordinal", func(t *testing.T) {
		email, err := g.GenerateFollowUp(context.Background(), lead, "", "professional", 3)
		require.NoError(t, err)
		assert.Contains(t, email.Subject, "#3")
	})
}

func TestNewFallsBackToTemplates(t *testing.T) {
	g := New(Config{}, logger.NopLogger{})
	_, isTemplate := g.(*TemplateGenerator)
	assert.True(t, isTemplate)

	g = New(Config{APIKey: "sk-test"}, logger.NopLogger{})
	_, isOpenAI := g.(*OpenAIGenerator)
	assert.True(t, isOpenAI)
}
