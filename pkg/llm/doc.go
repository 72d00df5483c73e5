// Package llm provides a chat completion client for OpenAI-compatible APIs,
// tuned for structured extraction work.
//
// The client carries two model names: the primary model for extraction
// prompts and a small model for cheaper auxiliary prompts such as summaries.
// Requests opt into JSON mode to get a machine-parseable object back, and
// CompleteJSON decodes that object directly into a caller-supplied struct.
//
// Transient failures (rate limits, upstream 5xx) are retried with a fixed
// interval before the error is returned.
//
// # Usage
//
//	client, err := llm.New(llm.Config{
//		APIKey: os.Getenv("OPENAI_API_KEY"),
//		Model:  "gpt-5-mini",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	var out struct {
//		Entities []string `json:"entities"`
//	}
//	err = client.CompleteJSON(ctx, llm.Request{
//		Messages: []llm.Message{
//			{Role: llm.RoleSystem, Content: "Extract entity names as JSON."},
//			{Role: llm.RoleUser, Content: text},
//		},
//	}, &out)
package llm
