package answer

import "strings"

// ContextSeparator joins reference texts inside the prompt.
const ContextSeparator = "\n---\n"

// InContextRefusal is the phrase the model is told to use when the context lacks the answer.
const InContextRefusal = "I'm sorry, I don't have that information in my database."

const instructions = "You are a helpful and concise game expert. Answer the user's question based ONLY on the provided context. " +
	"If the information is not in the context, say \"" + InContextRefusal + "\" " +
	"Keep your response to a maximum of three sentences."

// BuildPrompt renders the grounded prompt for query over contexts.
func BuildPrompt(query string, contexts []string) string {
	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\nCONTEXT:\n")
	sb.WriteString(strings.Join(contexts, ContextSeparator))
	sb.WriteString("\n\nQUESTION:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nANSWER:\n")
	return sb.String()
}
