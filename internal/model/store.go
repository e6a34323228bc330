// Package model holds the domain records shared by the store, tracker,
// and API layers.
package model

import "time"

// Store is a business registered on Naver Place and tracked by this system.
type Store struct {
	ID            string    `json:"id"`
	NaverPlaceID  string    `json:"naver_place_id"`
	Name          string    `json:"name"`
	Category      string    `json:"category,omitempty"`
	Address       string    `json:"address,omitempty"`
	NaverPlaceURL string    `json:"naver_place_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
