package experiments

import (
	"fmt"

	"github.com/banshee-data/pulsesim/internal/sequence"
)

// excitation is the state preparation plus 729 pulse shared by every
// experiment in this package.
type excitation struct {
	stateprep sequence.Handle
	rabiH     sequence.Handle
	rabi      *RabiExcitation
}

func (x *excitation) setup(ctx *sequence.Context) error {
	x.stateprep = ctx.Arena.Add(NewStatePreparation())
	x.rabiH = ctx.Arena.Add(NewRabiExcitation())
	sub, err := ctx.Arena.Get(x.rabiH)
	if err != nil {
		return err
	}
	rabi, ok := sub.(*RabiExcitation)
	if !ok {
		return fmt.Errorf("subsequence %q is %T, not *RabiExcitation", sub.Name(), sub)
	}
	x.rabi = rabi
	return nil
}

// rebind resolves cfg against the current point's parameters, so every
// experiment parameter can be scanned.
func rebind(ctx *sequence.Context, cfg any) error {
	_, err := ctx.Resolver.Attach(cfg)
	return err
}
