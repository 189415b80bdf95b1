package config

// WorkerKeyStruct names the Redis lists drained by the background workers.
type WorkerKeyStruct struct {
	PersistAnswersQueue    string
	PersistViolationsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:    "persist_answers_queue",
	PersistViolationsQueue: "persist_violations_queue",
}

// Queues returns every worker queue keyed by the short name used in metrics.
func (w *WorkerKeyStruct) Queues() map[string]string {
	return map[string]string{
		"answers":    w.PersistAnswersQueue,
		"violations": w.PersistViolationsQueue,
	}
}
