package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Stand is one independently addressable floor-plan location.
type Stand struct {
	bun.BaseModel `bun:"table:stands"`

	ID        int64     `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	PosX      float64   `bun:"pos_x,notnull" json:"-"`
	PosY      float64   `bun:"pos_y,notnull" json:"-"`
	PosZ      float64   `bun:"pos_z,notnull" json:"-"`
	Color     string    `bun:"color,notnull" json:"color"`
	Available bool      `bun:"available,notnull,default:true" json:"available"`
	WidthM    float64   `bun:"width_m,notnull" json:"-"`
	DepthM    float64   `bun:"depth_m,notnull" json:"-"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

type StandClub struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// StandView is the shape the floor-plan page renders.
type StandView struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Position   [3]float64 `json:"position"`
	Color      string     `json:"color"`
	Available  bool       `json:"available"`
	SizeMeters [2]float64 `json:"sizeMeters"`
	Club       *StandClub `json:"club"`
}

// StandPatch updates only the fields that are set.
type StandPatch struct {
	Name       *string     `json:"name"`
	Position   *[3]float64 `json:"position"`
	Color      *string     `json:"color"`
	Available  *bool       `json:"available"`
	SizeMeters *[2]float64 `json:"sizeMeters"`
}

func (s Stand) View(club *StandClub) StandView {
	return StandView{
		ID:         s.ID,
		Name:       s.Name,
		Position:   [3]float64{s.PosX, s.PosY, s.PosZ},
		Color:      s.Color,
		Available:  s.Available,
		SizeMeters: [2]float64{s.WidthM, s.DepthM},
		Club:       club,
	}
}
