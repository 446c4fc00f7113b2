package worker

// IngestTaskPayload is published to ingest.task when a document is
// uploaded and consumed by the IngestConsumer.
type IngestTaskPayload struct {
	ObjectKey     string `json:"object_key"`
	UserID        string `json:"user_id"`
	ChatID        string `json:"chat_id"`
	CorrelationID string `json:"correlation_id"`
}
