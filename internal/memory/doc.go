// Package memory implements the ingestion and retrieval pipeline over the
// knowledge graph.
//
// Ingestion turns an episode (a message, a document fragment, or a JSON
// payload) into graph writes: the episode node itself, the entities it
// mentions, and the facts connecting those entities. Extraction is delegated
// to a chat-completions model prompted with the episode and a short window
// of the group's prior episodes; entity and fact texts are embedded for
// similarity search before anything is persisted.
//
// Retrieval is hybrid: a keyword leg and an embedding-similarity leg run
// against the store and are fused with reciprocal rank fusion. When a center
// node is given, candidates are reordered by graph distance from it instead.
//
// The service bounds concurrent pipeline runs process-wide with a semaphore
// sized by configuration. Ordering guarantees are not this package's
// concern: callers serialize episodes per group by routing them through
// pkg/groupqueue.
package memory
