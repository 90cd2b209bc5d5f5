// Package sqlqa answers natural-language questions over the ERP database.
//
// A question is routed either to a small chat agent or through the SQL
// path: resolve the user's tables, pick the relevant ones, generate a
// query, refuse anything that is not a SELECT, run it and phrase the answer.
package sqlqa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/graph"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/metrics"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/storage"
)

// Node names.
const (
	NodeRouter         = "router_node"
	NodeChat           = "chat_node"
	NodeGetTables      = "get_tables"
	NodeWriteQuery     = "write_query"
	NodeExecuteQuery   = "execute_query"
	NodeGenerateAnswer = "generate_answer"
)

const (
	RouteGetTables = "get_tables"
	RouteChat      = "chat"

	Dialect       = "postgresql"
	TopK          = 5
	MaxTableInfo  = 50
	NoTablesQuery = "No relevant tables found."

	noAccessResponse = "You do not have access to any tables in this database."
	rejectedResponse = "Only read-only SELECT queries can be run. The generated query was not executed."
)

// ErrNotReadOnly is recorded on the state when a generated query is refused.
var ErrNotReadOnly = errors.New("query is not read-only")

// State is shared by every node of one run.
type State struct {
	Question      string   `json:"question"`
	User          string   `json:"user_name"`
	Route         string   `json:"route,omitempty"`
	Tables        []string `json:"tables,omitempty"`
	Status        bool     `json:"status"`
	Query         string   `json:"query,omitempty"`
	MatchedTables []string `json:"matched_tables,omitempty"`
	QueryResult   string   `json:"query_result,omitempty"`
	FinalResponse string   `json:"final_response"`
	Path          []string `json:"path,omitempty"`
	Err           error    `json:"-"`
}

// Permissions is what the assistant needs from the access package.
type Permissions interface {
	TablesForUser(ctx context.Context, login string) ([]string, error)
	MatchTables(ctx context.Context, tables []string) (matched, mismatched []string, err error)
	TableInfo(ctx context.Context, tables []string, schema string) (string, error)
	CountUserTables(ctx context.Context, login string) (int, error)
}

// QueryRunner executes a generated query and renders its rows.
type QueryRunner interface {
	Run(ctx context.Context, query string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

type routeOutput struct {
	Route string `json:"route" enum:"get_tables,chat" description:"Route decision for the user query"`
}

type tableOutput struct {
	Name []string `json:"name" description:"Name of a table or tables in SQL database."`
}

type queryOutput struct {
	Query string `json:"query" description:"Syntatically valid SQL query."`
}

type Assistant struct {
	model       *llm.Model
	perms       Permissions
	runner      QueryRunner
	transcriber Transcriber
	maxRetries  int
	logger      *zap.Logger
	graph       *graph.Runnable[State]
}

type Option func(*Assistant)

func WithTranscriber(t Transcriber) Option { return func(a *Assistant) { a.transcriber = t } }

func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMaxRetries sets the attempt count reported when execution fails.
func WithMaxRetries(n int) Option { return func(a *Assistant) { a.maxRetries = n } }

func New(model *llm.Model, perms Permissions, runner QueryRunner, opts ...Option) (*Assistant, error) {
	a := &Assistant{model: model, perms: perms, runner: runner, maxRetries: 3, logger: zap.NewNop()}
	for _, o := range opts {
		o(a)
	}
	g, err := a.build()
	if err != nil {
		return nil, err
	}
	a.graph = g.WithLogger(a.logger)
	return a, nil
}

func (a *Assistant) build() (*graph.Runnable[State], error) {
	return graph.New[State]().
		AddNode(NodeRouter, a.route).
		AddNode(NodeChat, a.chat).
		AddNode(NodeGetTables, a.getTables).
		AddNode(NodeWriteQuery, a.writeQuery).
		AddNode(NodeExecuteQuery, a.executeQuery).
		AddNode(NodeGenerateAnswer, a.generateAnswer).
		SetEntryPoint(NodeRouter).
		AddConditionalEdges(NodeRouter, routeDecision, map[string]string{
			RouteChat:      NodeChat,
			RouteGetTables: NodeGetTables,
		}).
		AddEdge(NodeChat, graph.END).
		AddConditionalEdges(NodeGetTables, checkStatus, map[string]string{
			NodeWriteQuery: NodeWriteQuery,
			"END":          graph.END,
		}).
		AddConditionalEdges(NodeWriteQuery, checkReadOnly, map[string]string{
			NodeExecuteQuery: NodeExecuteQuery,
			"END":            graph.END,
		}).
		AddEdge(NodeExecuteQuery, NodeGenerateAnswer).
		AddEdge(NodeGenerateAnswer, graph.END).
		Compile()
}

// Ask runs question for user through the graph and returns the final state.
func (a *Assistant) Ask(ctx context.Context, user, question string) (*State, error) {
	s := &State{Question: question, User: user}
	path, err := a.graph.Run(ctx, s)
	s.Path = path
	exit := "error"
	if err == nil && len(path) > 0 {
		exit = path[len(path)-1]
	}
	metrics.PipelineRunsTotal.WithLabelValues("sqlqa", exit).Inc()
	if err != nil {
		return s, fmt.Errorf("answer question: %w", err)
	}
	return s, nil
}

// AskAudio transcribes the recording at path and asks the transcript.
func (a *Assistant) AskAudio(ctx context.Context, user, path string) (string, *State, error) {
	if a.transcriber == nil {
		return "", nil, errors.New("no transcriber configured")
	}
	question, err := a.transcriber.Transcribe(ctx, path)
	if err != nil {
		return "", nil, err
	}
	s, err := a.Ask(ctx, user, question)
	return question, s, err
}

func (a *Assistant) route(ctx context.Context, s *State) error {
	var out routeOutput
	if err := a.model.Structured(ctx, "router", &out, routerPrompt(s.Question)...); err != nil {
		return err
	}
	s.Route = out.Route
	a.logger.Info("router decision", zap.String("route", s.Route))
	return nil
}

// routeDecision sends anything that is not get_tables to the chat node.
func routeDecision(s *State) string {
	if s.Route == RouteGetTables {
		return RouteGetTables
	}
	return RouteChat
}

func (a *Assistant) chat(ctx context.Context, s *State) error {
	user := s.User
	if user == "" {
		user = "Guest"
	}
	agent := &llm.Agent{
		Model:        a.model,
		SystemPrompt: chatSystemPrompt(user),
		Tools:        []llm.Tool{a.tableCountTool()},
	}
	reply, err := agent.Run(ctx, llm.User(s.Question))
	if err != nil {
		return err
	}
	s.FinalResponse = reply
	return nil
}

func (a *Assistant) tableCountTool() llm.Tool {
	return llm.Tool{
		Name:        "get_length_of_tables",
		Description: "Return the number of matched tables available for the given user.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"user_name": {Type: jsonschema.String},
			},
			Required: []string{"user_name"},
		},
		Call: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args struct {
				UserName string `json:"user_name"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}
			n, err := a.perms.CountUserTables(ctx, args.UserName)
			if err != nil {
				return "", err
			}
			if n == 0 {
				return fmt.Sprintf("No matching tables found for the user: %s.", args.UserName), nil
			}
			return strconv.Itoa(n), nil
		},
	}
}

func (a *Assistant) getTables(ctx context.Context, s *State) error {
	tables, err := a.perms.TablesForUser(ctx, s.User)
	if err != nil {
		return err
	}
	s.Status = len(tables) > 0
	if s.Status {
		s.Tables = tables
	} else {
		s.FinalResponse = noAccessResponse
	}
	a.logger.Info("user tables", zap.String("user", s.User), zap.Int("tables", len(tables)))
	return nil
}

func checkStatus(s *State) string {
	if s.Status {
		return NodeWriteQuery
	}
	return "END"
}

func (a *Assistant) writeQuery(ctx context.Context, s *State) error {
	matched, _, err := a.perms.MatchTables(ctx, s.Tables)
	if err != nil {
		return err
	}

	var picked tableOutput
	if err := a.model.Structured(ctx, "table", &picked, tablesPrompt(matched, s.Question)...); err != nil {
		return err
	}
	a.logger.Info("selected tables", zap.Strings("tables", picked.Name), zap.Int("count", len(picked.Name)))
	if len(picked.Name) == 0 {
		s.Query = NoTablesQuery
		s.FinalResponse = NoTablesQuery
		return nil
	}

	relevant := picked.Name
	if len(relevant) > MaxTableInfo {
		relevant = relevant[:MaxTableInfo]
	}
	info, err := a.perms.TableInfo(ctx, relevant, "public")
	if err != nil {
		return err
	}

	var out queryOutput
	if err := a.model.Structured(ctx, "query_output", &out, queryPrompt(Dialect, TopK, info, s.Question)...); err != nil {
		return err
	}
	s.Query = out.Query
	s.MatchedTables = matched
	if !storage.IsReadOnly(s.Query) {
		s.Err = ErrNotReadOnly
		s.FinalResponse = rejectedResponse
	}
	return nil
}

func checkReadOnly(s *State) string {
	if storage.IsReadOnly(s.Query) {
		return NodeExecuteQuery
	}
	return "END"
}

// executeQuery never fails the run: a query that keeps failing becomes a
// result the answer step can explain.
func (a *Assistant) executeQuery(ctx context.Context, s *State) error {
	result, err := a.runner.Run(ctx, s.Query)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		a.logger.Warn("query execution failed", zap.Error(err))
		s.QueryResult = fmt.Sprintf("Execution failed after %d attempts. Error: %v", a.maxRetries, err)
		return nil
	}
	s.QueryResult = result
	return nil
}

func (a *Assistant) generateAnswer(ctx context.Context, s *State) error {
	answer, err := a.model.Invoke(ctx, llm.User(answerPrompt(s.Question, s.Query, s.QueryResult)))
	if err != nil {
		return err
	}
	s.FinalResponse = answer
	return nil
}
