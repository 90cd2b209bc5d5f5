package procurement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/metrics"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/retry"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/storage"
)

// Tool names exposed to the chat model.
const (
	ToolListTables   = "sql_db_list_tables"
	ToolSchema       = "sql_db_schema"
	ToolQueryChecker = "sql_db_query_checker"
	ToolQuery        = "sql_db_query"
)

const (
	dialect       = "sqlite"
	sampleRows    = 3
	sampleCellLen = 100
	agentMaxSteps = 25
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrWriteQuery    = errors.New("only SELECT queries are allowed")
	ErrNoTranscriber = errors.New("no transcriber configured")
)

const chatSystemPrompt = `You are a procurement analysis assistant with SQL knowledge.
You can query a relational database that contains columns like Plant, Material, Short Text,
Supplier/Supplying Plant, Net Price, and Currency.

When a user asks a question:
- Convert it into a syntactically correct SQL SELECT query.
- Always LIMIT to 10 results unless the user specifies otherwise.
- Never modify data (no UPDATE, DELETE, INSERT, or DROP).
- Retrieve relevant columns only (avoid SELECT *).
- After fetching, summarize or explain results clearly like a procurement analyst.

Database dialect: ` + dialect + `.`

const queryCheckerTemplate = `
%s
Double check the %s query above for common mistakes, including:
- Using NOT IN with NULL values
- Using UNION when UNION ALL should have been used
- Using BETWEEN for exclusive ranges
- Data type mismatch in predicates
- Properly quoting identifiers
- Using the correct number of arguments for functions
- Casting to the correct data type
- Using the proper columns for joins

If there are any of the above mistakes, rewrite the query. If there are no mistakes, just reproduce the original query.

Output the final SQL query only.

SQL Query: `

// Transcriber turns a voice recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Chatbot answers procurement questions with a tool-calling agent over
// the procurement SQLite database.
type Chatbot struct {
	db          *sqlx.DB
	exec        *storage.Executor
	model       *llm.Model
	agent       *llm.Agent
	transcriber Transcriber
	logger      *zap.Logger
}

type ChatOption func(*Chatbot)

func WithTranscriber(t Transcriber) ChatOption { return func(c *Chatbot) { c.transcriber = t } }

func WithLogger(l *zap.Logger) ChatOption {
	return func(c *Chatbot) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChatbot builds the agent. The model runs at temperature 0.
func NewChatbot(model *llm.Model, db *sqlx.DB, opts ...ChatOption) *Chatbot {
	c := &Chatbot{
		db:     db,
		model:  model.With(llm.WithTemperature(0)),
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.exec = storage.NewExecutor(db, retry.Policy{MaxRetries: 1}, c.logger,
		storage.Provider(metrics.ProviderSQLite), storage.QueryOnly())
	c.agent = &llm.Agent{
		Model:        c.model,
		SystemPrompt: chatSystemPrompt,
		Tools:        c.tools(),
		MaxSteps:     agentMaxSteps,
	}
	return c
}

// Ask answers question and returns the agent's final message.
func (c *Chatbot) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	c.logger.Info("procurement question", zap.Int("chars", len(question)))
	answer, err := c.agent.Run(ctx, llm.User(question))
	exit := "answer"
	if err != nil {
		exit = "error"
	}
	metrics.PipelineRunsTotal.WithLabelValues("procurement_chat", exit).Inc()
	if err != nil {
		return "", fmt.Errorf("procurement chat: %w", err)
	}
	return answer, nil
}

// AskAudio transcribes the recording at path and asks the transcript.
func (c *Chatbot) AskAudio(ctx context.Context, path string) (question, answer string, err error) {
	if c.transcriber == nil {
		return "", "", ErrNoTranscriber
	}
	question, err = c.transcriber.Transcribe(ctx, path)
	if err != nil {
		return "", "", err
	}
	answer, err = c.Ask(ctx, question)
	return question, answer, err
}

func (c *Chatbot) tools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        ToolQuery,
			Description: "Input to this tool is a detailed and correct SQL query, output is a result from the database. If the query is not correct, an error message will be returned. If an error is returned, rewrite the query, check the query, and try again. If you encounter an issue with Unknown column 'xxxx' in 'field list', use " + ToolSchema + " to query the correct table fields.",
			Parameters:  stringParam("query", "A detailed and correct SQL query."),
			Call: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					Query string `json:"query"`
				}
				if err := json.Unmarshal(raw, &args); err != nil {
					return "", fmt.Errorf("decode arguments: %w", err)
				}
				return c.Query(ctx, args.Query)
			},
		},
		{
			Name:        ToolSchema,
			Description: "Input to this tool is a comma-separated list of tables, output is the schema and sample rows for those tables. Be sure that the tables actually exist by calling " + ToolListTables + " first! Example Input: table1, table2, table3",
			Parameters:  stringParam("table_names", "A comma-separated list of the table names for which to return the schema. Example input: 'table1, table2, table3'"),
			Call: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					TableNames string `json:"table_names"`
				}
				if err := json.Unmarshal(raw, &args); err != nil {
					return "", fmt.Errorf("decode arguments: %w", err)
				}
				return c.Schema(ctx, args.TableNames)
			},
		},
		{
			Name:        ToolListTables,
			Description: "Input is an empty string, output is a comma-separated list of tables in the database.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"tool_input": {Type: jsonschema.String, Description: "An empty string"},
				},
			},
			Call: func(ctx context.Context, _ json.RawMessage) (string, error) {
				tables, err := c.ListTables(ctx)
				if err != nil {
					return "", err
				}
				return strings.Join(tables, ", "), nil
			},
		},
		{
			Name:        ToolQueryChecker,
			Description: "Use this tool to double check if your query is correct before executing it. Always use this tool before executing a query with " + ToolQuery + "!",
			Parameters:  stringParam("query", "A detailed and SQL query to be checked."),
			Call: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					Query string `json:"query"`
				}
				if err := json.Unmarshal(raw, &args); err != nil {
					return "", fmt.Errorf("decode arguments: %w", err)
				}
				return c.CheckQuery(ctx, args.Query)
			},
		},
	}
}

func stringParam(name, description string) jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			name: {Type: jsonschema.String, Description: description},
		},
		Required: []string{name},
	}
}

// ListTables returns the user tables in the database, sorted.
func (c *Chatbot) ListTables(ctx context.Context) ([]string, error) {
	var tables []string
	err := c.db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// Schema returns the CREATE statement and a few sample rows for each of
// the comma separated tables.
func (c *Chatbot) Schema(ctx context.Context, tableNames string) (string, error) {
	var defs []struct {
		Name string `db:"name"`
		SQL  string `db:"sql"`
	}
	err := c.db.SelectContext(ctx, &defs,
		`SELECT name, sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}
	known := make(map[string]string, len(defs))
	for _, d := range defs {
		known[d.Name] = d.SQL
	}

	var wanted, missing []string
	for _, t := range strings.Split(tableNames, ",") {
		t = strings.Trim(strings.TrimSpace(t), `'"`)
		if t == "" {
			continue
		}
		if _, ok := known[t]; !ok {
			missing = append(missing, t)
			continue
		}
		wanted = append(wanted, t)
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("table_names %v not found in database", missing)
	}

	parts := make([]string, 0, len(wanted))
	for _, t := range wanted {
		sample, err := c.sample(ctx, t)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("%s\n\n/*\n%d rows from %s table:\n%s\n*/",
			strings.TrimRight(known[t], " \n"), sampleRows, t, sample))
	}
	return strings.Join(parts, "\n\n"), nil
}

func (c *Chatbot) sample(ctx context.Context, table string) (string, error) {
	rows, err := c.db.QueryxContext(ctx, fmt.Sprintf(`SELECT * FROM "%s" LIMIT %d`, table, sampleRows))
	if err != nil {
		return "", fmt.Errorf("sample %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}
	lines := []string{strings.Join(cols, "\t")}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return "", err
		}
		cells := make([]string, len(vals))
		for i, v := range vals {
			cells[i] = sampleCell(v)
		}
		lines = append(lines, strings.Join(cells, "\t"))
	}
	return strings.Join(lines, "\n"), rows.Err()
}

func sampleCell(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		s = "None"
	case []byte:
		s = string(x)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = fmt.Sprint(x)
	}
	if r := []rune(s); len(r) > sampleCellLen {
		s = string(r[:sampleCellLen])
	}
	return s
}

// Query runs a read-only query and renders the rows.
func (c *Chatbot) Query(ctx context.Context, query string) (string, error) {
	if !storage.IsReadOnly(query) {
		return "", ErrWriteQuery
	}
	return c.exec.Run(ctx, query)
}

// CheckQuery asks the model to review query for common mistakes.
func (c *Chatbot) CheckQuery(ctx context.Context, query string) (string, error) {
	return c.model.Invoke(ctx, llm.User(fmt.Sprintf(queryCheckerTemplate, query, dialect)))
}
