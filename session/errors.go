package session

import "errors"

var (
	// ErrNotPrepared indicates a query for a test whose data has not been read by PrepareData.
	ErrNotPrepared = errors.New("test data not prepared")

	// ErrPMRNotFound indicates a PMR index that is not in the pin list of an MPR test.
	ErrPMRNotFound = errors.New("PMR not found in the pin list")

	// ErrNoPMRData indicates a PMR index without results in an MPR test.
	ErrNoPMRData = errors.New("no test data for PMR")
)

var (
	// ErrSessionClosed indicates an operation on a closed session.
	ErrSessionClosed = errors.New("session closed")

	// ErrSuperseded indicates a load abandoned because a newer load was started.
	ErrSuperseded = errors.New("load superseded by a newer load")

	// ErrNoSession indicates that no file has been loaded.
	ErrNoSession = errors.New("no file loaded")
)
