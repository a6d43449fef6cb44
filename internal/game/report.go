// internal/game/report.go
package game

import (
	"math"
	"sort"

	"github.com/jason-s-yu/forca/internal/models"
)

// Report ranks the players of a room. Higher score ranks first; among equal
// scores, whoever finished all terms earlier wins, and unfinished players
// trail finished ones.
func Report(room *models.Room) *models.RoomReport {
	report := &models.RoomReport{
		RoomCode:   room.RoomCode,
		ModuleID:   room.ModuleID,
		ModuleName: room.ModuleName,
		Status:     room.Status,
		TermCount:  len(room.Terms),
		StartedAt:  room.StartedAt,
		FinishedAt: room.FinishedAt,
		Standings:  make([]models.Standing, 0, len(room.Players)),
	}

	for _, p := range room.Players {
		s := models.Standing{
			PlayerID:       p.ID,
			Name:           p.Name,
			Score:          p.Score,
			Methods:        make(map[models.ResolutionMethod]int),
			TermsCompleted: len(p.CompletedTerms),
		}
		for _, ct := range p.CompletedTerms {
			if ct.Result == models.ResultWon {
				s.Won++
			} else {
				s.Lost++
			}
			s.Methods[ct.Method]++
		}
		if s.TermsCompleted > 0 {
			s.Accuracy = math.Round(float64(s.Won)/float64(s.TermsCompleted)*1000) / 1000
		}
		if p.Finished(len(room.Terms)) && s.TermsCompleted > 0 {
			s.FinishedAt = p.CompletedTerms[s.TermsCompleted-1].Timestamp
		}
		report.Standings = append(report.Standings, s)
	}

	sort.Slice(report.Standings, func(i, j int) bool {
		a, b := report.Standings[i], report.Standings[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if fa, fb := finishKey(a), finishKey(b); fa != fb {
			return fa < fb
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.PlayerID < b.PlayerID
	})
	for i := range report.Standings {
		report.Standings[i].Rank = i + 1
	}
	return report
}

func finishKey(s models.Standing) int64 {
	if s.FinishedAt == 0 {
		return math.MaxInt64
	}
	return s.FinishedAt
}
