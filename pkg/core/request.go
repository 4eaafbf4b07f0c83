package core

// Request indicates the user's request for a new project.
type Request struct {
	ProjectName string `mapstructure:"project_name"`
	TargetDir   string `mapstructure:"target_dir"`

	// Options are the per-concern choices (language, styling, state,
	// routing); Features are the optional extras, in selection order.
	Options  map[string]string `mapstructure:"options"`
	Features []string          `mapstructure:"features"`

	Strategy       Strategy `mapstructure:"strategy"`
	MaxConcurrency int      `mapstructure:"max_concurrency"`
}

// DefaultRequest returns a Request with default values.
func DefaultRequest() *Request {
	return &Request{
		ProjectName: "my-app",
		TargetDir:   "my-app",
		Options: map[string]string{
			"language": "typescript",
			"styling":  "tailwind",
			"state":    "zustand",
			"routing":  "react-router",
		},
		Features:       []string{"linting", "prettier", "readme", "git"},
		Strategy:       PhasedParallel,
		MaxConcurrency: 4,
	}
}
