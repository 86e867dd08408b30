package crisis

import "errors"

var (
	ErrAlertNotFound       = errors.New("crisis alert not found")
	ErrAlertClosed         = errors.New("crisis alert is already resolved")
	ErrUnknownResponseKind = errors.New("unknown response kind")
)
