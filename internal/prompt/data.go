package prompt

import "github.com/dotcommander/architect/internal/domain/conversation"

type VisionData struct {
	Requirements []string
}

type StructureData struct {
	Requirements []string
	VisionText   string
}

type ContextsData struct {
	Requirements []string
	VisionText   string
	// FileList is the bullet list of prioritized files.
	FileList string
}

type UnderstandingData struct {
	Phase         conversation.Phase
	Metrics       conversation.Metrics
	Overall       int
	ExtractedInfo conversation.ExtractedInfo
	Turn          []conversation.Message
}
