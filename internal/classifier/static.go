package classifier

import (
	"context"

	"github.com/kycshield/kycshield/internal/domain"
)

// Static is a classifier that always returns a fixed result. It backs
// tests and local development without model servers.
type Static struct {
	kind   domain.ArtifactKind
	result *domain.ClassifierResult
	err    error
}

// NewStatic creates a classifier returning the given result for every call.
func NewStatic(kind domain.ArtifactKind, result *domain.ClassifierResult) *Static {
	return &Static{kind: kind, result: result}
}

// NewStaticError creates a classifier that fails every call at the
// transport level.
func NewStaticError(kind domain.ArtifactKind, err error) *Static {
	return &Static{kind: kind, err: err}
}

func (s *Static) Kind() domain.ArtifactKind {
	return s.kind
}

func (s *Static) Classify(ctx context.Context, artifactPath string) (*domain.ClassifierResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}
