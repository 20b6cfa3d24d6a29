package blueprint

// FolderNode is one folder of the generated project skeleton
type FolderNode struct {
	Name        string       `json:"name" validate:"required"`
	Description string       `json:"description"`
	Purpose     string       `json:"purpose"`
	Files       []FileInfo   `json:"files" validate:"dive"`
	Subfolders  []FolderNode `json:"subfolders" validate:"dive"`
}

// FileInfo is a file as it appears inside a FolderNode
type FileInfo struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Purpose     string `json:"purpose"`
}

// FileDescriptor is a flattened, path-resolved file. It is derived from a
// FolderNode tree and never mutated after creation.
type FileDescriptor struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// FullPath returns path/name, or just the name for an empty path.
func (d FileDescriptor) FullPath() string {
	if d.Path == "" {
		return d.Name
	}
	return d.Path + "/" + d.Name
}

// VisionResult is the stage 1 output
type VisionResult struct {
	VisionText string `json:"visionText"`
}

// StructureResult is the stage 2 output
type StructureResult struct {
	RootFolder *FolderNode `json:"rootFolder"`
}

// ContextResult is the stage 3 output. Selected holds the prioritized
// descriptors the request was built from.
type ContextResult struct {
	ImplementationOrder []FileContext    `json:"implementationOrder"`
	Selected            []FileDescriptor `json:"selected,omitempty"`
}

// FileContext describes how a single file should be implemented
type FileContext struct {
	Name              string           `json:"name"`
	Path              string           `json:"path"`
	Type              string           `json:"type"`
	Description       string           `json:"description"`
	Purpose           string           `json:"purpose"`
	Dependencies      []string         `json:"dependencies"`
	Components        []Component      `json:"components"`
	Implementations   []Implementation `json:"implementations"`
	Styling           string           `json:"styling,omitempty"`
	Configuration     string           `json:"configuration,omitempty"`
	StateManagement   string           `json:"stateManagement,omitempty"`
	DataFlow          string           `json:"dataFlow,omitempty"`
	ErrorHandling     string           `json:"errorHandling,omitempty"`
	TestingStrategy   string           `json:"testingStrategy,omitempty"`
	IntegrationPoints string           `json:"integrationPoints,omitempty"`
	EdgeCases         string           `json:"edgeCases,omitempty"`
	AdditionalContext string           `json:"additionalContext,omitempty"`
}

// Component is a logical part of a file (a class, a view, a handler group)
type Component struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Purpose      string   `json:"purpose"`
	Dependencies []string `json:"dependencies"`
	Details      string   `json:"details"`
}

// Implementation is a function or method the file must provide
type Implementation struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	ReturnType  string      `json:"returnType,omitempty"`
	Logic       string      `json:"logic"`
}

// Parameter is one argument of an Implementation
type Parameter struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Description  string `json:"description"`
	Validation   string `json:"validation,omitempty"`
	DefaultValue any    `json:"defaultValue,omitempty"`
}

// CountFiles returns the number of files in the tree rooted at n.
func (n *FolderNode) CountFiles() int {
	if n == nil {
		return 0
	}
	total := len(n.Files)
	for i := range n.Subfolders {
		total += n.Subfolders[i].CountFiles()
	}
	return total
}
