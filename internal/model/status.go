package model

// Status is the lifecycle tag of a report.
type Status string

const (
	StatusReported   Status = "reported"
	StatusInProgress Status = "in_progress"
	StatusRescued    Status = "rescued"
	StatusAdopted    Status = "adopted"
)

// statusRank orders the lifecycle. Transitions may only move forward.
var statusRank = map[Status]int{
	StatusReported:   0,
	StatusInProgress: 1,
	StatusRescued:    2,
	StatusAdopted:    3,
}

// ParseStatus validates a raw status value against the closed enum.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	_, ok := statusRank[st]
	return st, ok
}

// CanTransition reports whether a report may move from one status to another.
// Re-applying the current status is allowed so that retried updates stay
// idempotent; moving backward is not.
func CanTransition(from, to Status) bool {
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	return tr >= fr
}

// Urgency is the severity classification set once at creation.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

var urgencies = map[Urgency]struct{}{
	UrgencyLow:      {},
	UrgencyMedium:   {},
	UrgencyHigh:     {},
	UrgencyCritical: {},
}

// ParseUrgency validates a raw urgency value.
func ParseUrgency(s string) (Urgency, bool) {
	u := Urgency(s)
	_, ok := urgencies[u]
	return u, ok
}

// AnimalType classifies the reported animal.
type AnimalType string

const (
	AnimalDog    AnimalType = "dog"
	AnimalCat    AnimalType = "cat"
	AnimalPuppy  AnimalType = "puppy"
	AnimalKitten AnimalType = "kitten"
	AnimalOther  AnimalType = "other"
)

var animalTypes = map[AnimalType]struct{}{
	AnimalDog:    {},
	AnimalCat:    {},
	AnimalPuppy:  {},
	AnimalKitten: {},
	AnimalOther:  {},
}

// ParseAnimalType validates a raw animal type value.
func ParseAnimalType(s string) (AnimalType, bool) {
	a := AnimalType(s)
	_, ok := animalTypes[a]
	return a, ok
}
