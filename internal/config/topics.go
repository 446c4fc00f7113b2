package config

const (
	// TopicIngestTask is the NSQ topic for document ingestion tasks
	// published by the upload endpoint.
	TopicIngestTask = "ingest.task"
)
