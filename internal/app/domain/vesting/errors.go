package vesting

import "errors"

var (
	ErrUnauthorized      = errors.New("caller not authorized")
	ErrVestingOngoing    = errors.New("vesting window still open")
	ErrMilestonesReached = errors.New("milestones already reached")
	ErrUnvestedBurned    = errors.New("unvested remainder already burned")
)
