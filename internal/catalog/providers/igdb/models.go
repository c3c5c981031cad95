package igdb

// TokenResponse is the Twitch client-credentials grant response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Game is a game record with the expanded fields requested by the client.
type Game struct {
	ID                int               `json:"id"`
	Name              string            `json:"name"`
	Summary           string            `json:"summary"`
	Storyline         string            `json:"storyline"`
	FirstReleaseDate  int64             `json:"first_release_date"`
	TotalRatingCount  int               `json:"total_rating_count"`
	Rating            float64           `json:"rating"`
	URL               string            `json:"url"`
	Cover             *Cover            `json:"cover"`
	Genres            []Named           `json:"genres"`
	Themes            []Named           `json:"themes"`
	Keywords          []Named           `json:"keywords"`
	Platforms         []Named           `json:"platforms"`
	InvolvedCompanies []InvolvedCompany `json:"involved_companies"`
}

// Cover references an image in the IGDB image CDN.
type Cover struct {
	ID      int    `json:"id"`
	ImageID string `json:"image_id"`
}

// Named is any expanded reference carrying only a name.
type Named struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// InvolvedCompany links a company to a game with its role.
type InvolvedCompany struct {
	ID        int   `json:"id"`
	Company   Named `json:"company"`
	Developer bool  `json:"developer"`
	Publisher bool  `json:"publisher"`
}
