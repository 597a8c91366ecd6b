package espn

import (
	"encoding/json"
	"fmt"
)

// ScoreboardResponse is the subset of the scoreboard payload the app reads.
type ScoreboardResponse struct {
	Leagues []League `json:"leagues"`
	Week    Week     `json:"week"`
	Events  []Event  `json:"events"`
}

type League struct {
	Season LeagueSeason `json:"season"`
}

type LeagueSeason struct {
	Year int        `json:"year"`
	Type SeasonType `json:"type"`
}

// SeasonType is reported either as a bare number or as an object
// {"type": 2, ...}, depending on the endpoint.
type SeasonType int

func (s *SeasonType) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*s = SeasonType(n)
		return nil
	}
	var obj struct {
		Type int `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("espn: season type: %w", err)
	}
	*s = SeasonType(obj.Type)
	return nil
}

type Week struct {
	Number int `json:"number"`
}

type Event struct {
	ID           string        `json:"id"`
	Date         string        `json:"date"`
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	Competitions []Competition `json:"competitions"`
}

type Status struct {
	Type StatusType `json:"type"`
}

// StatusType.State is "pre", "in" or "post".
type StatusType struct {
	State     string `json:"state"`
	Completed bool   `json:"completed"`
}

type Competition struct {
	Competitors []Competitor `json:"competitors"`
}

type Competitor struct {
	HomeAway string `json:"homeAway"`
	Winner   bool   `json:"winner"`
	Score    string `json:"score"`
	Team     Team   `json:"team"`
}

type Team struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Abbreviation string `json:"abbreviation"`
	Logo         string `json:"logo"`
}

// SeasonYear is the league season year, or 0 when the feed omits it.
func (r *ScoreboardResponse) SeasonYear() int {
	if len(r.Leagues) == 0 {
		return 0
	}
	return r.Leagues[0].Season.Year
}

// SeasonTypeID is the league season type, or 0 when the feed omits it.
func (r *ScoreboardResponse) SeasonTypeID() int {
	if len(r.Leagues) == 0 {
		return 0
	}
	return int(r.Leagues[0].Season.Type)
}

// AllCompleted reports whether the response has events and every one is over.
func (r *ScoreboardResponse) AllCompleted() bool {
	if len(r.Events) == 0 {
		return false
	}
	for _, e := range r.Events {
		if !e.Status.Type.Completed {
			return false
		}
	}
	return true
}

// CurrentWeek is the feed's idea of "now", as shown on its default scoreboard.
type CurrentWeek struct {
	SeasonType int  `json:"seasonType"`
	Week       int  `json:"week"`
	Year       int  `json:"year"`
	Completed  bool `json:"completed"` // every event of the week has finished
}
