package s2detections

import "strings"

// ClassPolicy partitions detector class labels into targets (things worth
// swiping) and hazards (things a swipe must never touch). A label in
// neither set is tracked but ignored by targeting.
type ClassPolicy struct {
	targets map[string]struct{}
	hazards map[string]struct{}
}

// NewClassPolicy builds a policy from label lists. Labels are matched
// case-insensitively. A label appearing in both lists is treated as a
// hazard; safety wins.
func NewClassPolicy(targets, hazards []string) ClassPolicy {
	p := ClassPolicy{
		targets: make(map[string]struct{}, len(targets)),
		hazards: make(map[string]struct{}, len(hazards)),
	}
	for _, t := range targets {
		p.targets[strings.ToLower(t)] = struct{}{}
	}
	for _, h := range hazards {
		p.hazards[strings.ToLower(h)] = struct{}{}
		delete(p.targets, strings.ToLower(h))
	}
	return p
}

// IsTarget reports whether class is swipeable.
func (p ClassPolicy) IsTarget(class string) bool {
	_, ok := p.targets[strings.ToLower(class)]
	return ok
}

// IsHazard reports whether class must never be swiped.
func (p ClassPolicy) IsHazard(class string) bool {
	_, ok := p.hazards[strings.ToLower(class)]
	return ok
}
