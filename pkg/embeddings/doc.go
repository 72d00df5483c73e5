// Package embeddings converts text into vector embeddings for semantic
// similarity search.
//
// A Provider abstracts the embedding backend; OpenAIProvider is the built-in
// implementation and talks to the OpenAI embeddings API, or any compatible
// endpoint via a custom base URL. Batch requests are split transparently to
// respect the API's per-request input limit.
//
// # Usage
//
//	provider, err := embeddings.NewOpenAIProvider(embeddings.OpenAIConfig{
//		APIKey: os.Getenv("OPENAI_API_KEY"),
//		Model:  "text-embedding-3-large",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	vec, err := provider.Embed(ctx, "The sky above the port was tuned to a dead channel.")
//	if err != nil {
//		log.Fatal(err)
//	}
//	score := embeddings.Cosine(vec, other)
//
// # Error Handling
//
// API failures map onto package sentinels where the cause is recognizable
// (ErrRateLimitExceeded, ErrContextLengthExceeded); everything else is
// returned with the upstream message preserved.
package embeddings
