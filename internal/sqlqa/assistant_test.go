package sqlqa

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm/llmtest"
)

type fakePerms struct {
	tables   []string
	existing []string
	info     string
	err      error
	gotInfo  []string
}

func (f *fakePerms) TablesForUser(context.Context, string) ([]string, error) {
	return f.tables, f.err
}

func (f *fakePerms) MatchTables(_ context.Context, tables []string) ([]string, []string, error) {
	var matched, mismatched []string
	for _, t := range tables {
		found := false
		for _, e := range f.existing {
			if e == t {
				found = true
			}
		}
		if found {
			matched = append(matched, t)
		} else {
			mismatched = append(mismatched, t)
		}
	}
	return matched, mismatched, nil
}

func (f *fakePerms) TableInfo(_ context.Context, tables []string, _ string) (string, error) {
	f.gotInfo = tables
	return f.info, nil
}

func (f *fakePerms) CountUserTables(ctx context.Context, login string) (int, error) {
	m, _, err := f.MatchTables(ctx, f.tables)
	return len(m), err
}

type fakeRunner struct {
	result  string
	err     error
	queries []string
}

func (f *fakeRunner) Run(_ context.Context, q string) (string, error) {
	f.queries = append(f.queries, q)
	return f.result, f.err
}

func newAssistant(t *testing.T, client *llmtest.Client, perms Permissions, runner QueryRunner, opts ...Option) *Assistant {
	t.Helper()
	a, err := New(llm.NewModel(client, "gpt-4o-mini"), perms, runner, opts...)
	require.NoError(t, err)
	return a
}

func salesPerms() *fakePerms {
	return &fakePerms{
		tables:   []string{"sale_order", "res_partner", "stock_move"},
		existing: []string{"sale_order", "res_partner"},
		info:     "Table: sale_order\nColumns: name (text), amount_total (numeric)",
	}
}

func TestAsk_SQLPath(t *testing.T) {
	client := llmtest.New(
		llmtest.Text(`{"route":"get_tables"}`),
		llmtest.Text(`{"name":["sale_order"]}`),
		llmtest.Text(`{"query":"SELECT name, amount_total FROM sale_order ORDER BY amount_total DESC LIMIT 5"}`),
		llmtest.Text("The largest order is SO042."),
	)
	perms := salesPerms()
	runner := &fakeRunner{result: "[('SO042', 990.0)]"}

	s, err := newAssistant(t, client, perms, runner).Ask(context.Background(), "edwin@example.com", "What is our biggest order?")
	require.NoError(t, err)

	assert.Equal(t, []string{NodeRouter, NodeGetTables, NodeWriteQuery, NodeExecuteQuery, NodeGenerateAnswer}, s.Path)
	assert.Equal(t, "The largest order is SO042.", s.FinalResponse)
	assert.Equal(t, []string{"sale_order", "res_partner"}, s.MatchedTables)
	assert.Equal(t, []string{"sale_order"}, perms.gotInfo)
	assert.Len(t, runner.queries, 1)

	reqs := client.Requests()
	require.Len(t, reqs, 4)
	assert.Contains(t, llmtest.Prompt(reqs[1]), "['sale_order', 'res_partner']")
	assert.NotContains(t, llmtest.Prompt(reqs[1]), "stock_move")
	assert.Contains(t, llmtest.Prompt(reqs[2]), "correct postgresql query")
	assert.Contains(t, llmtest.Prompt(reqs[2]), "at most 5 results")
	assert.Contains(t, llmtest.Prompt(reqs[3]), "SQL Result: [('SO042', 990.0)]")
}

func TestAsk_ChatPath(t *testing.T) {
	client := llmtest.New(
		llmtest.Text(`{"route":"chat"}`),
		llmtest.ToolCall("c1", "get_length_of_tables", `{"user_name":"edwin@example.com"}`),
		llmtest.Text("You can see 2 tables."),
	)
	s, err := newAssistant(t, client, salesPerms(), &fakeRunner{}).Ask(context.Background(), "edwin@example.com", "How many tables do I have?")
	require.NoError(t, err)

	assert.Equal(t, []string{NodeRouter, NodeChat}, s.Path)
	assert.Equal(t, "You can see 2 tables.", s.FinalResponse)

	reqs := client.Requests()
	require.Len(t, reqs, 3)
	assert.Contains(t, reqs[1].Messages[0].Content, "User's name is edwin@example.com.")
	last := reqs[2].Messages[len(reqs[2].Messages)-1]
	assert.Equal(t, openai.ChatMessageRoleTool, last.Role)
	assert.Equal(t, "2", last.Content)
}

func TestAsk_UnknownRouteFallsBackToChat(t *testing.T) {
	client := llmtest.New(
		llmtest.Text(`{"route":"weather"}`),
		llmtest.Text("Hello!"),
	)
	s, err := newAssistant(t, client, salesPerms(), &fakeRunner{}).Ask(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{NodeRouter, NodeChat}, s.Path)
	assert.Contains(t, client.Requests()[1].Messages[0].Content, "User's name is Guest.")
}

func TestAsk_NoTables(t *testing.T) {
	client := llmtest.New(llmtest.Text(`{"route":"get_tables"}`))
	perms := &fakePerms{}
	s, err := newAssistant(t, client, perms, &fakeRunner{}).Ask(context.Background(), "former@example.com", "list my invoices")
	require.NoError(t, err)
	assert.Equal(t, []string{NodeRouter, NodeGetTables}, s.Path)
	assert.False(t, s.Status)
	assert.Equal(t, noAccessResponse, s.FinalResponse)
}

func TestAsk_NoRelevantTables(t *testing.T) {
	client := llmtest.New(
		llmtest.Text(`{"route":"get_tables"}`),
		llmtest.Text(`{"name":[]}`),
	)
	runner := &fakeRunner{}
	s, err := newAssistant(t, client, salesPerms(), runner).Ask(context.Background(), "edwin@example.com", "weather in Pune?")
	require.NoError(t, err)
	assert.Equal(t, NoTablesQuery, s.Query)
	assert.Equal(t, []string{NodeRouter, NodeGetTables, NodeWriteQuery}, s.Path)
	assert.Empty(t, runner.queries)
}

func TestAsk_RejectsWrites(t *testing.T) {
	client := llmtest.New(
		llmtest.Text(`{"route":"get_tables"}`),
		llmtest.Text(`{"name":["sale_order"]}`),
		llmtest.Text(`{"query":"-- cleanup\nDELETE FROM sale_order"}`),
	)
	runner := &fakeRunner{}
	s, err := newAssistant(t, client, salesPerms(), runner).Ask(context.Background(), "edwin@example.com", "delete all orders")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Err, ErrNotReadOnly)
	assert.Empty(t, runner.queries)
	assert.Equal(t, rejectedResponse, s.FinalResponse)
}

func TestAsk_ExecutionFailureIsAnswered(t *testing.T) {
	client := llmtest.New(
		llmtest.Text(`{"route":"get_tables"}`),
		llmtest.Text(`{"name":["sale_order"]}`),
		llmtest.Text(`{"query":"SELECT nope FROM sale_order"}`),
		llmtest.Text("The query failed."),
	)
	runner := &fakeRunner{err: errors.New(`column "nope" does not exist`)}
	s, err := newAssistant(t, client, salesPerms(), runner, WithMaxRetries(3)).Ask(context.Background(), "edwin@example.com", "q")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.QueryResult, "Execution failed after 3 attempts. Error: "))
	assert.Contains(t, s.QueryResult, `column "nope" does not exist`)
	assert.Equal(t, "The query failed.", s.FinalResponse)
}

func TestAsk_PermissionErrorAborts(t *testing.T) {
	client := llmtest.New(llmtest.Text(`{"route":"get_tables"}`))
	perms := &fakePerms{err: errors.New("user not found")}
	_, err := newAssistant(t, client, perms, &fakeRunner{}).Ask(context.Background(), "ghost", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node get_tables")
}

func TestAskAudio(t *testing.T) {
	client := llmtest.New(llmtest.Text(`{"route":"chat"}`), llmtest.Text("Hi there"))
	audio := &llmtest.Audio{Text: "hello assistant"}
	tr := llm.NewTranscriber(audio, "whisper-1", nil)

	question, s, err := newAssistant(t, client, salesPerms(), &fakeRunner{}, WithTranscriber(tr)).
		AskAudio(context.Background(), "edwin@example.com", "recorded_audio.wav")
	require.NoError(t, err)
	assert.Equal(t, "hello assistant", question)
	assert.Equal(t, "Hi there", s.FinalResponse)
}
