package repository

import "errors"

// Ошибки уровня репозитория.
var (
	ErrMissionNotFound  = errors.New("mission not found")
	ErrBusinessNotFound = errors.New("business not found")
	ErrEscrowNotFound   = errors.New("escrow not found")
	ErrReviewNotFound   = errors.New("review not found")
	ErrUserNotFound     = errors.New("user not found")
)

// ErrEscrowConflict - у миссии уже есть живой escrow.
var ErrEscrowConflict = errors.New("active escrow already exists for mission")
