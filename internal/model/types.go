package model

// JobParameters is the operator input that defines one extraction job.
// Headless and ExpandedSearch are forwarded to the backend untouched.
type JobParameters struct {
	Category       string `json:"rubro" validate:"required"`
	Region         string `json:"departamento" validate:"required"`
	Country        string `json:"pais" validate:"required"`
	TargetCount    int    `json:"cantidad" validate:"gt=0"`
	Headless       bool   `json:"headless"`
	ExpandedSearch bool   `json:"expanded_search"`
}

type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelSuccess LogLevel = "success"
	LevelError   LogLevel = "error"
)

// ParseLogLevel keeps unknown backend levels verbatim; an empty level is info.
func ParseLogLevel(raw string) LogLevel {
	if raw == "" {
		return LevelInfo
	}
	return LogLevel(raw)
}

func (l LogLevel) IsKnown() bool {
	switch l {
	case LevelInfo, LevelSuccess, LevelError:
		return true
	default:
		return false
	}
}

type LogEntry struct {
	Timestamp string   `json:"timestamp"`
	Message   string   `json:"message"`
	Level     LogLevel `json:"level"`
}

// ProgressSnapshot is replaced wholesale by every progress event.
// Regressions are accepted as sent.
type ProgressSnapshot struct {
	Percentage int `json:"percentage"`
	Current    int `json:"current"`
}

// ResultRecord is one extracted place. ID is the server-assigned index.
type ResultRecord struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	Address     string         `json:"address"`
	Phone       string         `json:"phone"`
	Rating      *float64       `json:"rating,omitempty"`
	ReviewCount *int           `json:"review_count,omitempty"`
	Status      string         `json:"status,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}
