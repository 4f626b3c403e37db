package schema

import (
	"fmt"
	"strings"
)

// SynthesisPrompt embeds question verbatim into the SQL generation template.
func SynthesisPrompt(question string) string {
	var b strings.Builder
	b.WriteString("Convert the following natural language query to SQL based on this e-commerce database schema:\n\n")
	b.WriteString("Tables:\n")
	b.WriteString(Describe(""))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Query: %s\n\n", question)
	b.WriteString("IMPORTANT:\n")
	b.WriteString("- Return ONLY the raw SQL without any markdown formatting, comments, or backticks.\n")
	b.WriteString("- Always end SQL statements with a semicolon (;).\n")
	b.WriteString("- Use the exact column names for query (ProductName not \"Product Name\", etc.)\n")
	b.WriteString("- Do NOT assume information that is not explicitly mentioned in the database.\n")
	return b.String()
}

// SystemInstruction is the chat session's system prompt: the schema, the
// language mirroring policy and the refusal policy for unrelated questions.
func SystemInstruction() string {
	var b strings.Builder
	b.WriteString("You are an AI assistant for a company. You are connected to a SQLite database. In this database you have Tables:\n")
	b.WriteString(Describe("  "))
	b.WriteString("\n")
	b.WriteString("As prompt, you are going to get natural language requests in English or some other language. ")
	b.WriteString("Respond in the same language you get the prompt.\n\n")
	b.WriteString("Try to find the necessary information in the database for your responses. ")
	b.WriteString("You can use your tools to generate SQL queries (get_sql_query) and execute those queries (get_sql_result).\n")
	b.WriteString("If the prompt is not related to your database, do NOT generate a response on your own. Kindly explain the question is unrelated.\n")
	return b.String()
}

// Examples are the sample questions offered to new users.
var Examples = []string{
	"List the top 5 customers by order count",
	"What's the average price of products in each category?",
	"Show orders from customers in Germany",
	"List all products with price greater than $100",
	"List products served in bottles",
	"Give me an ideal dinner menu from your products",
}
