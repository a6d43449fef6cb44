// internal/models/report.go
package models

// Standing is one player's line in a finished room's ranking.
type Standing struct {
	Rank           int                      `json:"rank"`
	PlayerID       string                   `json:"playerId"`
	Name           string                   `json:"name"`
	Score          int                      `json:"score"`
	Won            int                      `json:"won"`
	Lost           int                      `json:"lost"`
	Methods        map[ResolutionMethod]int `json:"methods"`
	Accuracy       float64                  `json:"accuracy"`
	TermsCompleted int                      `json:"termsCompleted"`
	FinishedAt     int64                    `json:"finishedAt"`
}

// RoomReport is the summary of a room, archived once the room finishes.
type RoomReport struct {
	RoomCode   string     `json:"roomCode"`
	ModuleID   string     `json:"moduleId"`
	ModuleName string     `json:"moduleName"`
	Status     RoomStatus `json:"status"`
	TermCount  int        `json:"termCount"`
	StartedAt  int64      `json:"startedAt"`
	FinishedAt int64      `json:"finishedAt"`
	Standings  []Standing `json:"standings"`
}
