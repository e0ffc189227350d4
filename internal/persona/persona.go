package persona

// Persona identifies a participant in a discussion. The three AI personas
// rotate in a fixed cycle; User messages are interleaved by turn number only.
type Persona string

const (
	Analyzer  Persona = "analyzer"
	Solver    Persona = "solver"
	Moderator Persona = "moderator"
	User      Persona = "user"
)

// AIPersonas is the fixed execution order within a round.
var AIPersonas = [3]Persona{Analyzer, Solver, Moderator}

// IsAI reports whether p is one of the three AI personas.
func (p Persona) IsAI() bool {
	return p == Analyzer || p == Solver || p == Moderator
}

// DisplayName returns the capitalized name used in prompts and transcripts.
func (p Persona) DisplayName() string {
	switch p {
	case Analyzer:
		return "Analyzer"
	case Solver:
		return "Solver"
	case Moderator:
		return "Moderator"
	case User:
		return "User"
	}
	return string(p)
}

// TurnNumber maps (round, persona) to the global turn number for that
// persona's utterance. Rounds are 1-based. Every component that needs an
// expected turn number derives it from here so the numbering cannot drift.
// User messages have no assigned slot and map to 0.
func TurnNumber(round int, p Persona) int {
	switch p {
	case Analyzer:
		return (round-1)*3 + 1
	case Solver:
		return (round-1)*3 + 2
	case Moderator:
		return (round-1)*3 + 3
	}
	return 0
}

// FromTurn is the inverse of TurnNumber: it recovers the persona and round
// that own a global turn number.
func FromTurn(turn int) (Persona, int) {
	round := (turn + 2) / 3
	switch turn % 3 {
	case 1:
		return Analyzer, round
	case 2:
		return Solver, round
	default:
		return Moderator, round
	}
}

// Next returns the persona that speaks after p in the fixed cycle
// Analyzer -> Solver -> Moderator -> Analyzer.
func Next(p Persona) Persona {
	switch p {
	case Analyzer:
		return Solver
	case Solver:
		return Moderator
	case Moderator:
		return Analyzer
	}
	return Analyzer
}
