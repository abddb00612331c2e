package achievements

import (
	"errors"

	"healthcare-companion-server/internal/models"
)

// ErrAmbiguousUpdate is returned when an update sets neither or both of
// Value and Increment.
var ErrAmbiguousUpdate = errors.New("exactly one of value or increment is required")

// Update changes one progress counter, either to Value or by Increment.
type Update struct {
	Value     *float64 `json:"value,omitempty"`
	Increment *float64 `json:"increment,omitempty"`
}

// Set builds an absolute update.
func Set(v float64) Update { return Update{Value: &v} }

// Add builds a relative update.
func Add(delta float64) Update { return Update{Increment: &delta} }

func (u Update) Validate() error {
	if (u.Value == nil) == (u.Increment == nil) {
		return ErrAmbiguousUpdate
	}
	return nil
}

// Apply updates the counter named key and unlocks every not-yet-unlocked
// achievement of the role watching that key whose target the new value
// meets. Only the changed counter is evaluated. It returns the newly
// unlocked achievements in catalog order.
func Apply(p *models.AchievementProgress, role models.Role, key string, u Update) []Achievement {
	if p.Progress == nil {
		p.Progress = make(map[string]float64)
	}
	switch {
	case u.Value != nil:
		p.Progress[key] = *u.Value
	case u.Increment != nil:
		p.Progress[key] += *u.Increment
	}
	value := p.Progress[key]

	var unlocked []Achievement
	for _, a := range Catalog(role) {
		if !watches(a, key) || p.HasUnlocked(a.ID) {
			continue
		}
		if value >= a.Target {
			p.Unlocked = append(p.Unlocked, a.ID)
			p.Score += a.Points
			unlocked = append(unlocked, a)
		}
	}
	return unlocked
}

func watches(a Achievement, key string) bool {
	return a.ProgressKey == key || (a.Type == TypeStreak && key == KeyStreakDays)
}

// Status is the read model of one achievement for one user.
type Status struct {
	Achievement
	Unlocked bool    `json:"unlocked"`
	Current  float64 `json:"current"`
}

// Summary is the read model served by the achievements endpoint.
type Summary struct {
	Score        int      `json:"score"`
	Achievements []Status `json:"achievements"`
}

// Summarize joins a user's progress with the role catalog.
func Summarize(p models.AchievementProgress, role models.Role) Summary {
	catalog := Catalog(role)
	out := Summary{Score: p.Score, Achievements: make([]Status, 0, len(catalog))}
	for _, a := range catalog {
		out.Achievements = append(out.Achievements, Status{
			Achievement: a,
			Unlocked:    p.HasUnlocked(a.ID),
			Current:     p.Progress[a.ProgressKey],
		})
	}
	return out
}

// Titles lists the titles of achievements, for celebration messages.
func Titles(list []Achievement) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Title
	}
	return out
}
