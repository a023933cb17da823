package services

import "errors"

// Error taxonomy. AlreadyCompleted, ManualCompletionNotAllowed and QuestLocked
// are expected user-facing outcomes; InvalidQuestConfig signals corrupt
// catalog data and aborts the single completion attempt it was found in.
var (
	ErrUnauthenticated            = errors.New("unauthenticated")
	ErrQuestNotFound              = errors.New("quest not found")
	ErrSkillNotFound              = errors.New("skill not found")
	ErrProfileNotFound            = errors.New("profile not found")
	ErrAlreadyCompleted           = errors.New("quest already completed in this window")
	ErrManualCompletionNotAllowed = errors.New("quest completes automatically from tracked progress")
	ErrQuestLocked                = errors.New("parent quest has not been completed yet")
	ErrInvalidQuestConfig         = errors.New("invalid quest configuration")
	ErrInvalidExternalActivity    = errors.New("invalid external activity")
	ErrNegativeXP                 = errors.New("xp awarded must be non-negative")
)
