package entity

import "time"

// Package is a purchase tier on the (stubbed) payment page.
type Package struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int       `json:"price_cents"`
	Yaks        int       `json:"yaks"`
	BonusYaks   int       `json:"bonus_yaks"`
	Enabled     bool      `json:"enabled"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Package) TotalYaks() int {
	return p.Yaks + p.BonusYaks
}

func (p *Package) PriceUSD() float64 {
	return float64(p.PriceCents) / 100.0
}
