package suggest

import "errors"

var (
	// ErrValidation means the description is too short to analyze. Nothing
	// was called.
	ErrValidation = errors.New("description too short")
	// ErrConfiguration means the generator cannot run at all, e.g. no model
	// credentials. Callers report the service as unavailable.
	ErrConfiguration = errors.New("suggestion service not configured")
	// ErrGeneration covers provider failures and model output that fails
	// parsing or validation. Such output is never cached.
	ErrGeneration = errors.New("suggestion generation failed")
)

// User-facing failure messages.
const (
	MessageTooShort         = "La description du projet doit contenir au moins %d caractères pour obtenir des suggestions pertinentes."
	MessageGenerationFailed = "Impossible de générer des suggestions pour le moment. Veuillez réessayer."
	MessageUnavailable      = "Service IA non disponible."
)
