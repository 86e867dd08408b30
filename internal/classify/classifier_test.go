package classify

import (
	"context"
	"testing"

	"github.com/astralcore/haven/internal/models"
)

func TestCriticalPhraseDetected(t *testing.T) {
	c := NewKeywordClassifier()

	result, err := c.Classify(context.Background(), "I want to kill myself")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !result.CrisisDetected || !result.Flagged {
		t.Fatal("critical phrase not detected")
	}
	if result.Severity != models.SeverityCritical {
		t.Fatalf("severity = %v, want critical", result.Severity)
	}
	if result.Confidence < 0.9 {
		t.Fatalf("confidence = %v, want >= 0.9", result.Confidence)
	}
}

func TestSeverityIsMaxOfMatches(t *testing.T) {
	c := NewKeywordClassifier()

	result, _ := c.Classify(context.Background(), "I feel hopeless and want to hurt myself")
	if result.Severity != models.SeverityHigh {
		t.Fatalf("severity = %v, want high (max of matched phrases)", result.Severity)
	}
	if len(result.Keywords) != 2 {
		t.Fatalf("keywords = %v, want both phrases recorded", result.Keywords)
	}
}

func TestMultipleMatchesRaiseConfidence(t *testing.T) {
	c := NewKeywordClassifier()

	single, _ := c.Classify(context.Background(), "feeling hopeless")
	double, _ := c.Classify(context.Background(), "feeling hopeless, can't go on")
	if double.Confidence <= single.Confidence {
		t.Fatalf("confidence %v with two matches not above %v with one", double.Confidence, single.Confidence)
	}
}

func TestCaseInsensitive(t *testing.T) {
	c := NewKeywordClassifier()

	result, _ := c.Classify(context.Background(), "SUICIDE")
	if !result.CrisisDetected {
		t.Fatal("uppercase phrase not detected")
	}
}

func TestBenignTextNotFlagged(t *testing.T) {
	c := NewKeywordClassifier()

	result, _ := c.Classify(context.Background(), "had a nice walk today, feeling better")
	if result.CrisisDetected || result.Flagged {
		t.Fatalf("benign text flagged: %+v", result)
	}
	if result.Confidence != 0 {
		t.Fatalf("confidence = %v for benign text, want 0", result.Confidence)
	}
}
