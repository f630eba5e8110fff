package engine

import "errors"

// ErrorKind classifies the failures raised while resolving a level
type ErrorKind string

const (
	ConfigurationError   ErrorKind = "ConfigurationError"
	MonsterKilledError   ErrorKind = "MonsterKilledError"
	InvalidMoveError     ErrorKind = "InvalidMoveError"
	TargetUnreachedError ErrorKind = "TargetUnreachedError"
)

// LevelError is a failure raised by the simulator
type LevelError struct {
	Kind    ErrorKind
	Message string
}

func (e *LevelError) Error() string {
	return e.Message
}

// Is reports whether target is a LevelError of the same kind, so the
// sentinels below work with errors.Is.
func (e *LevelError) Is(target error) bool {
	t, ok := target.(*LevelError)
	return ok && t.Kind == e.Kind
}

var (
	ErrConfiguration   = &LevelError{Kind: ConfigurationError, Message: "Player or target not found in map"}
	ErrMonsterKilled   = &LevelError{Kind: MonsterKilledError, Message: "Monster killed you!"}
	ErrInvalidMove     = &LevelError{Kind: InvalidMoveError, Message: "Moving to a place you cannot"}
	ErrTargetUnreached = &LevelError{Kind: TargetUnreachedError, Message: "Failed to reach target"}
)

func configurationError(message string) *LevelError {
	return &LevelError{Kind: ConfigurationError, Message: message}
}

// IsFatal reports whether err must abort a run before it starts.
func IsFatal(err error) bool {
	var le *LevelError
	return errors.As(err, &le) && le.Kind == ConfigurationError
}
