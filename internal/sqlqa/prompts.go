package sqlqa

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/llm"
)

const routerSystemPrompt = "You are a classifier. Your job is to decide if the user's question " +
	"requires database/table/account operations (handled by 'get_tables') " +
	"or if it just needs a simple conversational response (handled by 'chat').\n\n" +
	"Classification Rules:\n" +
	"- If the question asks about *tables, accounts, users, database details,* " +
	"or anything requiring fetching/matching user data → return 'get_tables'.\n" +
	"- If it is a general conversation, basic question, or about number/length of tables, return 'chat'.\n\n"

func routerPrompt(question string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{llm.System(routerSystemPrompt), llm.User(question)}
}

func tablesPrompt(tables []string, question string) []openai.ChatCompletionMessage {
	system := "Return the names of ALL the SQL tables that MIGHT be relevant to the user question.\n" +
		"The tables are:\n\n" +
		pyList(tables) + "\n\n" +
		"Remember to include ALL POTENTIALLY RELEVANT tables, even if you're not sure that they're needed."
	return []openai.ChatCompletionMessage{llm.System(system), llm.User("Question: " + question)}
}

const queryTemplate = `
Given an input question, create a syntactically correct %s query to
run to help find the answer. Unless the user specifies in his question a
specific number of examples they wish to obtain, always limit your query to
at most %d results. You can order the results by a relevant column to
return the most interesting examples in the database.

Never query for all the columns from a specific table, only ask for a
few relevant columns given the question.

Pay attention to use only the column names that you can see in the schema
description. Be careful to not query for columns that do not exist. Also,
pay attention to which column is in which table.

Only use the following tables:
%s
`

func queryPrompt(dialect string, topK int, tableInfo, question string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		llm.System(fmt.Sprintf(queryTemplate, dialect, topK, tableInfo)),
		llm.User("Question: " + question),
	}
}

func answerPrompt(question, query, result string) string {
	return "Given the following user question, corresponding SQL query, " +
		"and SQL result, answer the user question.\n\n" +
		"Question: " + question + "\n" +
		"SQL Query: " + query + "\n" +
		"SQL Result: " + result
}

func chatSystemPrompt(user string) string {
	return "You are a helpful assistant. " +
		"User's name is " + user + ". " +
		"If the user asks about the number of tables, call the get_length_of_tables tool. " +
		"Otherwise, respond conversationally. " +
		"Do not greet them with their email unless explicitly asked."
}

// pyList renders names the way the table prompt has always shown them.
func pyList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
