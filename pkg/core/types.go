package core

// Source is one cited document excerpt attached to an answer.
// The JSON names match the chunk metadata the query endpoint emits.
type Source struct {
	DocName     string `json:"doc_name"`
	PageNum     int    `json:"page_num"`
	ExcerptText string `json:"text"`

	// ChunkID identifies the retrieved chunk when the server includes it.
	ChunkID int `json:"chunk_id,omitempty"`
}

// CloneSources returns a copy of sources that shares no backing array with
// the input. A nil input yields an empty, non-nil slice.
func CloneSources(sources []Source) []Source {
	out := make([]Source, len(sources))
	copy(out, sources)
	return out
}
