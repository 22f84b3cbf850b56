package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cory-johannsen/gmtools/internal/game/chain"
	"github.com/cory-johannsen/gmtools/internal/game/dice"
	"github.com/cory-johannsen/gmtools/internal/game/outcome"
)

// writeReport prints one line per step followed by the chain summary.
func writeReport(w io.Writer, res chain.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "STEP\tACTION\tSOURCE\tTARGET\tSUCCESS\tVERDICT\n")
	for _, s := range res.Steps {
		r := s.Result
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f%%\t%s\n",
			s.Index, s.ActionID,
			side(r.SourceAttribute, r.SourceValue, r.SourceDie, r.SourceModifier, s.SourceOverridden),
			side(r.TargetAttribute, r.TargetValue, r.TargetDie, r.TargetModifier, s.TargetOverridden),
			r.SuccessPercentage, verdict(r),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, s := range res.Steps {
		if g := s.Result.Guidance; g != nil {
			fmt.Fprintf(w, "step %d faces: wins %v, losses %v, mixed %v\n",
				s.Index, g.GuaranteedWins, g.GuaranteedLosses, g.Mixed)
		}
		if m := s.Result.MarginRange; m != nil {
			fmt.Fprintf(w, "step %d margin: %d..%d\n", s.Index, m.Min, m.Max)
		}
	}

	fmt.Fprintf(w, "chain %s probability %.2f%%", res.ChainID, res.Probability)
	if res.Truncation != chain.NotTruncated {
		fmt.Fprintf(w, " (truncated: %s at %s)", res.Truncation, res.StoppedAt)
	}
	_, err := fmt.Fprintln(w)
	return err
}

func side(attr dice.Attribute, value float64, die dice.DieType, mod int, overridden bool) string {
	s := fmt.Sprintf("%s %.2f", attr, value)
	if die != dice.None {
		s += fmt.Sprintf(" (%s%+d)", die, mod)
	}
	if overridden {
		s += " *"
	}
	return s
}

func verdict(r outcome.Result) string {
	switch {
	case r.GuaranteedSuccess:
		return "guaranteed success"
	case r.GuaranteedFailure:
		return "guaranteed failure"
	default:
		return "partial"
	}
}
