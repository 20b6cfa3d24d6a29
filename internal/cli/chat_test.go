package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/architect/internal/domain/conversation"
)

// vagueReply keeps understanding low and extracts nothing.
func vagueReply(system, user string) (string, error) {
	if strings.Contains(system, "interviewing a client") {
		return fenced(map[string]any{
			"response": "Tell me more about who will use it.",
			"metrics": map[string]any{
				"coreConcept": 40, "requirements": 10, "technical": 0, "constraints": 0, "userContext": 20,
			},
		}), nil
	}
	return plannerReply(system, user)
}

func TestChatCmd_PlansWhenReady(t *testing.T) {
	_, mock := setupTestApp(t, plannerReply)

	out, err := execute(t, "a budgeting app\n/status\n/plan\n", "chat")
	require.NoError(t, err)

	assert.Contains(t, out, "Which currencies do you need?")
	assert.Contains(t, out, "[understanding 90%, phase clarification]")
	assert.Contains(t, out, "I have enough to plan the project")
	assert.Contains(t, out, "overall:       90% (ready at 80%)")
	assert.NotContains(t, out, "needs work")
	assert.Contains(t, out, "Planning from 2 requirements")
	assert.Contains(t, out, "Implementation order:")

	calls := mock.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "user: a budgeting app", calls[0].UserMessage)
	assert.Contains(t, calls[1].UserMessage, "- Track monthly expenses\n- Technical: postgres")
}

func TestChatCmd_AutoPlan(t *testing.T) {
	_, mock := setupTestApp(t, plannerReply)

	out, err := execute(t, "a budgeting app\nnever read\n", "chat", "--plan")
	require.NoError(t, err)
	assert.Contains(t, out, "Implementation order:")
	assert.NotContains(t, out, "Type /plan")
	assert.Equal(t, 4, mock.CallCount())
}

func TestChatCmd_NotReadyUsesWhatWasSaid(t *testing.T) {
	_, mock := setupTestApp(t, vagueReply)

	out, err := execute(t, "a todo app\nfor teams\n/status\n/plan\n", "chat")
	require.NoError(t, err)

	assert.NotContains(t, out, "I have enough")
	assert.Contains(t, out, "needs work:    technical, constraints, requirements, userContext, coreConcept")
	assert.Contains(t, out, "gathered:      0 requirements, 0 technical details")

	calls := mock.Calls()
	require.Len(t, calls, 5)
	assert.Equal(t, "assistant: Tell me more about who will use it.\nuser: for teams", calls[1].UserMessage)
	assert.Contains(t, calls[2].UserMessage, "- a todo app\n- for teams")
}

func TestChatCmd_FailedTurnKeepsGoing(t *testing.T) {
	_, mock := setupTestApp(t, plannerReply)
	mock.EnqueueError(errors.New("overloaded"))

	out, err := execute(t, "first try\nsecond try\n/quit\n", "chat")
	require.NoError(t, err)

	assert.Contains(t, out, "error: ")
	assert.Contains(t, out, "overloaded")
	assert.Contains(t, out, "Which currencies do you need?")
	assert.Equal(t, 2, mock.CallCount())
}

func TestChatCmd_ResetForgetsEverything(t *testing.T) {
	_, mock := setupTestApp(t, vagueReply)

	_, err := execute(t, "a todo app\n/reset\n/plan\n", "chat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to plan yet")
	assert.Equal(t, 1, mock.CallCount())
}

func TestChatRequirements(t *testing.T) {
	cs := &chatSession{said: []string{"typed"}}
	cs.state = conversation.Context{ExtractedInfo: conversation.ExtractedInfo{
		Requirements:     []string{"A", "A"},
		TechnicalDetails: []string{"go"},
	}}
	assert.Equal(t, []string{"A", "A", "Technical: go"}, cs.requirements())

	cs.state = conversation.NewContext()
	assert.Equal(t, []string{"typed"}, cs.requirements())
}
