package engine

import "errors"

// Engine error taxonomy. Every operation fails atomically: when one of
// these is returned, no state mutation from the call is retained.
var (
	// ErrAccessDenied — caller lacks the required role.
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidWindow — quest expiry too close to creation time.
	ErrInvalidWindow = errors.New("quest expiry window too short")
	// ErrInvalidMultiplier — multiplier outside the allowed range.
	ErrInvalidMultiplier = errors.New("invalid quest multiplier")
	// ErrNotFound — quest id outside the registry range.
	ErrNotFound = errors.New("quest not found")
	// ErrAlreadyExpired — expiring a quest that is already expired.
	ErrAlreadyExpired = errors.New("quest already expired")
	// ErrSeasonNotElapsed — rollover attempted before the minimum season length.
	ErrSeasonNotElapsed = errors.New("season has not elapsed")
	// ErrSeasonalQuestsStillActive — rollover attempted while a seasonal quest can still be completed.
	ErrSeasonalQuestsStillActive = errors.New("seasonal quests still active")
	// ErrInvalidArgs — empty batch or mismatched quest id / signature counts.
	ErrInvalidArgs = errors.New("invalid completion arguments")
	// ErrInvalidQuest — quest missing, inactive, or past expiry at completion time.
	ErrInvalidQuest = errors.New("quest not completable")
	// ErrAlreadyCompleted — the account already completed this quest.
	ErrAlreadyCompleted = errors.New("quest already completed")
	// ErrInvalidSignature — the completion attestation did not verify.
	ErrInvalidSignature = errors.New("invalid completion signature")
	// ErrPropagationFailed — a staking collaborator rejected the multiplier update.
	ErrPropagationFailed = errors.New("multiplier propagation failed")
)
