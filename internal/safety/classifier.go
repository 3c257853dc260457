// Package safety decides whether inbound messages and outbound replies may proceed.
package safety

import (
	"context"
	"errors"

	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

// Classifier reports whether text is acceptable.
type Classifier interface {
	IsSafe(ctx context.Context, text string) (bool, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, text string) (bool, error)

func (f ClassifierFunc) IsSafe(ctx context.Context, text string) (bool, error) {
	return f(ctx, text)
}

// FailClosed turns a Classifier into a yes/no gate: a missing classifier or any
// classifier error counts as unsafe.
type FailClosed struct {
	classifier Classifier
	logger     *logging.Logger
}

func NewFailClosed(classifier Classifier, logger *logging.Logger) *FailClosed {
	if logger == nil {
		logger = logging.Default()
	}
	return &FailClosed{classifier: classifier, logger: logger}
}

// Allow reports whether text may proceed.
func (f *FailClosed) Allow(ctx context.Context, text string) bool {
	if f == nil || f.classifier == nil {
		return false
	}
	safe, err := f.classifier.IsSafe(ctx, text)
	if err != nil {
		f.logger.Warn("safety classifier failed; treating as unsafe", "error", err)
		return false
	}
	return safe
}

// Chain is safe only when every classifier says so. Evaluation stops at the
// first unsafe verdict or error.
type Chain []Classifier

func (c Chain) IsSafe(ctx context.Context, text string) (bool, error) {
	if len(c) == 0 {
		return false, errors.New("safety: empty classifier chain")
	}
	for _, classifier := range c {
		if classifier == nil {
			return false, errors.New("safety: nil classifier in chain")
		}
		safe, err := classifier.IsSafe(ctx, text)
		if err != nil || !safe {
			return false, err
		}
	}
	return true, nil
}
