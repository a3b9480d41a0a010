package config

type WorkerKeyStruct struct {
	// PersistResponsesQueue buffers response autosaves from the WebSocket
	// stream until the autosave worker flushes them to PostgreSQL.
	PersistResponsesQueue string
	// SectionDeadlines is a sorted set of attempt IDs scored by the UNIX
	// timestamp at which their active section expires.
	SectionDeadlines string
}

var WorkerKey = &WorkerKeyStruct{
	PersistResponsesQueue: "persist_responses_queue",
	SectionDeadlines:      "attempt_section_deadlines",
}
