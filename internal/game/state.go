package game

// Phase is the current stage of a merge game.
type Phase string

const (
	PhaseMenu  Phase = "MENU"
	PhaseReady Phase = "READY"
	PhaseDrop  Phase = "DROP"
	PhaseLose  Phase = "LOSE"
)

// acceptsPlay reports whether fruit may be moved, dropped or merged.
func (p Phase) acceptsPlay() bool {
	return p == PhaseReady || p == PhaseDrop
}
