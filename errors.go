package cochlea

import "github.com/farcloser/cochlea/internal/types"

// Error kinds. Every error returned by this package wraps exactly one of them;
// test with errors.Is.
//
//nolint:gochecknoglobals // re-exported sentinels
var (
	// ErrInput: the signals cannot be compared (empty, mismatched lengths, bad rate, non-finite samples).
	ErrInput = types.ErrInput
	// ErrConfiguration: invalid parameters or an unusable model artifact.
	ErrConfiguration = types.ErrConfiguration
	// ErrModel: the regression model could not produce a score.
	ErrModel = types.ErrModel
	// ErrEngine: an internal computation failed.
	ErrEngine = types.ErrEngine
)
