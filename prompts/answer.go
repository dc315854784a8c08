package prompts

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// AnswerRequest is everything the model sees about one question.
type AnswerRequest struct {
	Language   string
	AnswerType string
	Question   string
	// Options holds the labels of choice and scale questions, or the single
	// placeholder/diagnostic value of other types.
	Options []string
}

// AnswerSystem frames every answer request sent to chat models.
const AnswerSystem = `You are an expert assistant for Microsoft Forms. You answer one survey question at a time.
Always reply with a single JSON object of the form {"answer": "...", "justification": "..."} and nothing else.`

// BuildAnswerPrompt renders the full prompt fed to the local model on stdin.
func BuildAnswerPrompt(r AnswerRequest) string {
	language := r.Language
	if language == "" {
		language = "Unknown"
	}
	var b strings.Builder
	b.WriteString("You are an expert assistant for Microsoft Forms.\n")
	fmt.Fprintf(&b, "Question language: %s\n", language)
	fmt.Fprintf(&b, "Question type: %s\n", r.AnswerType)
	fmt.Fprintf(&b, "Question: %s\n", r.Question)
	fmt.Fprintf(&b, "Options: %s\n\n", strings.Join(r.Options, " | "))
	b.WriteString("Rules:\n")
	b.WriteString("- If type is choiceItem or npsContainer: the answer is the EXACT text of one option.\n")
	fmt.Fprintf(&b, "- If type is textInput: the answer is concise, relevant and written in %s.\n", language)
	b.WriteString("- Never translate the question or the options.\n")
	b.WriteString(`- Reply with JSON only: {"answer": "<answer>", "justification": "<one short sentence>"}` + "\n\n")
	b.WriteString("Answer:")
	return b.String()
}

// AnswerTemplate wraps a rendered prompt for chat models. The user message
// expects a "prompt" variable.
func AnswerTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(AnswerSystem),
		schema.UserMessage("{{.prompt}}"),
	)
}
