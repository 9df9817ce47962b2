package output

// RowOutput is one row of a generate or validate run.
type RowOutput struct {
	Row        int      `json:"row"`
	BaseName   string   `json:"base_name,omitempty"`
	OutputPath string   `json:"output_path,omitempty"`
	Status     string   `json:"status"`
	FailedAt   string   `json:"failed_at,omitempty"`
	Error      string   `json:"error,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	DurationMS int64    `json:"duration_ms,omitempty"`
}

// GenerateOutput is the JSON result of the generate command.
type GenerateOutput struct {
	RunID     string      `json:"run_id,omitempty"`
	Template  string      `json:"template"`
	Format    string      `json:"format"`
	OutputDir string      `json:"output_dir"`
	DryRun    bool        `json:"dry_run,omitempty"`
	Rows      []RowOutput `json:"rows"`
	Summary   Summary     `json:"summary"`
}

// Summary counts row outcomes.
type Summary struct {
	Total  int `json:"total"`
	Done   int `json:"done"`
	Failed int `json:"failed"`
}

// ParameterInfo describes one template parameter.
type ParameterInfo struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Type     string `json:"type,omitempty"`
	Location string `json:"location"`
}

// ParamsOutput is the JSON result of the params command.
type ParamsOutput struct {
	Template   string          `json:"template"`
	BaseName   string          `json:"base_name"`
	Format     string          `json:"format"`
	Parameters []ParameterInfo `json:"parameters"`
}

// CheckOutput is one validation finding.
type CheckOutput struct {
	Name    string   `json:"name"`
	Status  string   `json:"status"` // ok, warn, error
	Details []string `json:"details,omitempty"`
}

// ValidateOutput is the JSON result of the validate command.
type ValidateOutput struct {
	Template string        `json:"template"`
	Data     string        `json:"data"`
	Valid    bool          `json:"valid"`
	Checks   []CheckOutput `json:"checks"`
	Rows     []RowOutput   `json:"rows,omitempty"`
}

// TemplateInfo is a discovered template.
type TemplateInfo struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Format     string `json:"format,omitempty"`
	Parameters int    `json:"parameters"`
	Error      string `json:"error,omitempty"`
}

// DiscoverOutput is the JSON result of the discover command.
type DiscoverOutput struct {
	ProjectRoot string         `json:"project_root"`
	Templates   []TemplateInfo `json:"templates"`
	Configs     []string       `json:"configs"`
	DataFiles   []string       `json:"data_files"`
}

// RunInfo is a stored run.
type RunInfo struct {
	ID          string `json:"id"`
	Template    string `json:"template"`
	DataFile    string `json:"data_file"`
	OutputDir   string `json:"output_dir"`
	Status      string `json:"status"`
	Total       int    `json:"total"`
	Done        int    `json:"done"`
	Failed      int    `json:"failed"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

// HistoryOutput is the JSON result of the history command.
type HistoryOutput struct {
	Runs []RunInfo   `json:"runs,omitempty"`
	Run  *RunInfo    `json:"run,omitempty"`
	Rows []RowOutput `json:"rows,omitempty"`
}
