package classify

import (
	"context"
	"strings"

	"github.com/astralcore/haven/internal/models"
)

// Result is what the hub consumes for every outbound message: a
// moderation flag plus crisis detection with a confidence score.
type Result struct {
	Flagged  bool
	Severity models.Severity
	Reason   string

	CrisisDetected bool
	Keywords       []string
	Confidence     float64
}

// Classifier is the external content-analysis collaborator. The keyword
// implementation below is the built-in default; a remote NLP service can
// be substituted without touching the hub.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// Fixed keyword tables. Each phrase maps to the severity it signals and a
// base confidence; matching more than one phrase raises confidence. The
// thresholds are deliberate and uniform: severity never depends on which
// call site asked.
var keywordTable = []struct {
	phrase     string
	severity   models.Severity
	confidence float64
}{
	{"kill myself", models.SeverityCritical, 0.95},
	{"end my life", models.SeverityCritical, 0.95},
	{"want to die", models.SeverityCritical, 0.9},
	{"suicide", models.SeverityCritical, 0.85},
	{"better off dead", models.SeverityCritical, 0.85},

	{"hurt myself", models.SeverityHigh, 0.8},
	{"self harm", models.SeverityHigh, 0.8},
	{"self-harm", models.SeverityHigh, 0.8},
	{"overdose", models.SeverityHigh, 0.75},
	{"cutting myself", models.SeverityHigh, 0.75},

	{"no reason to live", models.SeverityMedium, 0.65},
	{"can't go on", models.SeverityMedium, 0.6},
	{"give up on everything", models.SeverityMedium, 0.55},
	{"hopeless", models.SeverityMedium, 0.5},

	{"so alone", models.SeverityLow, 0.4},
	{"worthless", models.SeverityLow, 0.4},
	{"nobody cares", models.SeverityLow, 0.35},
}

// multiMatchBoost is added per extra matched phrase, capped at maxConfidence.
const (
	multiMatchBoost = 0.05
	maxConfidence   = 1.0
)

// KeywordClassifier scans text against the fixed phrase tables above.
// Case-insensitive substring matching; no persistence, no network.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

func (c *KeywordClassifier) Classify(_ context.Context, text string) (Result, error) {
	lowered := strings.ToLower(text)

	var result Result
	matches := 0
	for _, entry := range keywordTable {
		if !strings.Contains(lowered, entry.phrase) {
			continue
		}
		matches++
		result.Keywords = append(result.Keywords, entry.phrase)
		if !result.CrisisDetected || entry.severity.Rank() > result.Severity.Rank() {
			result.Severity = entry.severity
		}
		if entry.confidence > result.Confidence {
			result.Confidence = entry.confidence
		}
		result.CrisisDetected = true
	}

	if matches > 1 {
		result.Confidence += multiMatchBoost * float64(matches-1)
		if result.Confidence > maxConfidence {
			result.Confidence = maxConfidence
		}
	}

	if result.CrisisDetected {
		result.Flagged = true
		result.Reason = "crisis language detected"
	}

	return result, nil
}
