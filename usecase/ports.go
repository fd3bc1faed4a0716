package usecase

import (
	"context"

	"github.com/fastygo/dailyquest/domain"
)

// Notifier receives engine events. Emit never blocks the caller on delivery and never fails it.
type Notifier interface {
	Emit(ctx context.Context, event domain.Event)
}

// Proof is an uploaded proof file.
type Proof struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ProofStorage keeps proof files and hands back opaque references to them.
type ProofStorage interface {
	Save(ctx context.Context, ownerID string, proof Proof) (string, error)
	Release(ctx context.Context, ref string) error
	URL(ctx context.Context, ref string) (string, error)
}

// Recorder observes engine outcomes for metrics.
type Recorder interface {
	AttemptsAllocated(n int)
	AttemptsFailed(n int)
	VoteCast(result string)
	Settlement(ok bool)
}

type NopNotifier struct{}

func (NopNotifier) Emit(context.Context, domain.Event) {}

type NopRecorder struct{}

func (NopRecorder) AttemptsAllocated(int) {}
func (NopRecorder) AttemptsFailed(int)    {}
func (NopRecorder) VoteCast(string)       {}
func (NopRecorder) Settlement(bool)       {}
