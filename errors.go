package coach

import (
	"errors"

	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/pgn"
	"github.com/discochess/coach/internal/repository"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrNoRepository indicates no repository was provided.
	ErrNoRepository = errors.New("coach: no repository provided")

	// ErrNoEvaluator indicates an operation needs an evaluator and none was configured.
	ErrNoEvaluator = errors.New("coach: no evaluator configured")

	// ErrClosed indicates the client has been closed.
	ErrClosed = errors.New("coach: client closed")
)

// Kind classifies an error by who has to act on it.
type Kind int

const (
	// KindNone is the kind of a nil error.
	KindNone Kind = iota

	// KindClient covers bad input: unparsable PGN, failed validation and
	// missing players or games.
	KindClient

	// KindUpstream covers an evaluator that cannot serve requests.
	KindUpstream

	// KindInternal covers everything else, storage failures included.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindClient:
		return "client"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// KindOf classifies err.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var validation *repository.ValidationError
	switch {
	case errors.Is(err, pgn.ErrParse),
		errors.As(err, &validation),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, engine.ErrInvalidConfig):
		return KindClient
	case errors.Is(err, engine.ErrEngineUnavailable),
		errors.Is(err, engine.ErrNotInitialized):
		return KindUpstream
	}
	return KindInternal
}
