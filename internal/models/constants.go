package models

const (
	// FallbackAnswer is what the assistant says when the context does not cover the question.
	FallbackAnswer = "I don't have enough information to answer that."

	ContextHeaderFormat = "[From: %s]\n%s\n\n"
	PreviewLength       = 300
)

var (
	AnswerPromptTemplate = `You are a Game Design Knowledge Assistant.
Use ONLY the provided context to answer the question.
If the context does not contain the answer, reply with:
"` + FallbackAnswer + `"

Context:
%s

Question:
%s

Answer:
`
)
