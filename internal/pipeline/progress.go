package pipeline

// Stage identifies where in the ingestion flow a progress event was emitted.
type Stage string

const (
	StageReading    Stage = "reading"
	StageParsing    Stage = "parsing"
	StageExtracting Stage = "extracting"
	StageFormatting Stage = "formatting"
	StageComplete   Stage = "complete"
)

// Progress is one ephemeral progress event for a single ingestion call.
type Progress struct {
	Stage          Stage  `json:"stage"`
	Percentage     int    `json:"percentage"`
	Message        string `json:"message"`
	BytesProcessed int64  `json:"bytesProcessed,omitempty"`
	TotalBytes     int64  `json:"totalBytes,omitempty"`
	ItemsProcessed int    `json:"itemsProcessed,omitempty"`
	TotalItems     int    `json:"totalItems,omitempty"`
}

// emitter delivers progress events without ever blocking the pipeline.
// Events beyond the channel's buffer are dropped; listeners are advisory.
type emitter struct {
	ch chan Progress
}

func newEmitter() *emitter {
	return &emitter{ch: make(chan Progress, 32)}
}

func (e *emitter) emit(p Progress) {
	select {
	case e.ch <- p:
	default:
	}
}

func (e *emitter) close() { close(e.ch) }
