package tui

// PresenterState represents the reply presenter state machine.
type PresenterState int

// Presenter states.
const (
	PresenterIdle      PresenterState = iota // No reply being revealed
	PresenterTyping                          // Revealing runes tick by tick
	PresenterCompleted                       // Full reply visible
	PresenterStopped                         // Frozen mid-reveal by the user
)

// Presenter reveals a completed bot reply one rune per tick, simulating
// typing. It is purely presentational: the full reply already lives in
// the message log before presentation starts, and stopping only freezes
// what is shown, never what is stored.
//
// Not safe for concurrent use; the Bubble Tea event loop serializes all
// access.
type Presenter struct {
	state PresenterState
	reply []rune
	shown int
}

// NewPresenter creates an idle presenter.
func NewPresenter() *Presenter {
	return &Presenter{}
}

// Present starts revealing a new reply. Valid from any state: a new
// reply always restarts the reveal from zero. An empty reply completes
// immediately.
func (p *Presenter) Present(content string) {
	p.reply = []rune(content)
	p.shown = 0
	if len(p.reply) == 0 {
		p.state = PresenterCompleted
		return
	}
	p.state = PresenterTyping
}

// Tick reveals the next rune. Returns true while more ticks are needed;
// the transition to Completed happens on the tick that reveals the last
// rune. Ticks in any other state are ignored.
func (p *Presenter) Tick() bool {
	if p.state != PresenterTyping {
		return false
	}
	p.shown++
	if p.shown >= len(p.reply) {
		p.shown = len(p.reply)
		p.state = PresenterCompleted
		return false
	}
	return true
}

// Stop freezes the reveal at the currently shown prefix. Only a reveal
// in progress can be stopped; stopping an idle or finished presenter is
// a no-op.
func (p *Presenter) Stop() {
	if p.state != PresenterTyping {
		return
	}
	p.state = PresenterStopped
}

// Visible returns exactly the revealed prefix. After Stop this never
// changes until a new Present.
func (p *Presenter) Visible() string {
	return string(p.reply[:p.shown])
}

// State returns the current presenter state.
func (p *Presenter) State() PresenterState {
	return p.state
}

// Revealing reports whether a reveal is in progress.
func (p *Presenter) Revealing() bool {
	return p.state == PresenterTyping
}
