package core

import "errors"

var (
	ErrNoRegisterFile = errors.New("board has no register file")
	ErrNoFunctions    = errors.New("board has no function controller")
	ErrNoPower        = errors.New("board has no power controller")
	ErrNoStatus       = errors.New("board has no status flags")
	ErrNoSamples      = errors.New("board has no sample array")
)

// Board is the shared state every handler works on.
// It is built once at startup and lives for the whole run; the SPI slave,
// the sampler and the register file all hold the same *Board.
type Board struct {
	Registers RegisterFile
	Functions FunctionController
	Power     PowerController
	Status    *Status
	Samples   *Samples
}

// Validate checks that every collaborator is wired
func (b *Board) Validate() error {
	switch {
	case b.Registers == nil:
		return ErrNoRegisterFile
	case b.Functions == nil:
		return ErrNoFunctions
	case b.Power == nil:
		return ErrNoPower
	case b.Status == nil:
		return ErrNoStatus
	case b.Samples == nil:
		return ErrNoSamples
	}
	return nil
}
