package arel

import "errors"

var (
	// ErrIncompleteJoin is returned when a JoinOperation that was never
	// completed with On is compiled.
	ErrIncompleteJoin = errors.New("incomplete join: call On to complete it")

	// ErrAmbiguousSelfJoin is returned when a join's right input reads a
	// table the left input already reads, without an Alias telling the two
	// apart.
	ErrAmbiguousSelfJoin = errors.New("ambiguous self-join: alias one side with Alias")

	// ErrNoEngine is returned when a relation without an Engine is asked to
	// execute, read or write.
	ErrNoEngine = errors.New("relation has no engine")
)
