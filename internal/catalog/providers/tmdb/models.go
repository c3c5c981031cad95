package tmdb

// SearchMoviesResponse is the response from TMDB movie search.
type SearchMoviesResponse struct {
	Page         int           `json:"page"`
	Results      []MovieResult `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

// MovieResult is a movie from TMDB search results.
type MovieResult struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	ReleaseDate   string  `json:"release_date"`
	PosterPath    *string `json:"poster_path"`
	BackdropPath  *string `json:"backdrop_path"`
	VoteAverage   float64 `json:"vote_average"`
	VoteCount     int     `json:"vote_count"`
	Popularity    float64 `json:"popularity"`
	GenreIDs      []int   `json:"genre_ids"`
}

// MovieDetails is the detailed movie info from TMDB.
type MovieDetails struct {
	ID                  int                 `json:"id"`
	Title               string              `json:"title"`
	OriginalTitle       string              `json:"original_title"`
	Overview            string              `json:"overview"`
	ReleaseDate         string              `json:"release_date"`
	PosterPath          *string             `json:"poster_path"`
	BackdropPath        *string             `json:"backdrop_path"`
	Popularity          float64             `json:"popularity"`
	Runtime             int                 `json:"runtime"`
	Tagline             string              `json:"tagline"`
	ImdbID              string              `json:"imdb_id"`
	Genres              []Genre             `json:"genres"`
	ProductionCompanies []ProductionCompany `json:"production_companies,omitempty"`
	Credits             *Credits            `json:"credits,omitempty"`
	Keywords            *MovieKeywords      `json:"keywords,omitempty"`
}

// SearchTVResponse is the response from TMDB TV search.
type SearchTVResponse struct {
	Page         int        `json:"page"`
	Results      []TVResult `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

// TVResult is a TV series from TMDB search results.
type TVResult struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	OriginalName string  `json:"original_name"`
	Overview     string  `json:"overview"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   *string `json:"poster_path"`
	BackdropPath *string `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	Popularity   float64 `json:"popularity"`
	GenreIDs     []int   `json:"genre_ids"`
}

// TVDetails is the detailed TV series info from TMDB.
type TVDetails struct {
	ID                  int                 `json:"id"`
	Name                string              `json:"name"`
	Overview            string              `json:"overview"`
	FirstAirDate        string              `json:"first_air_date"`
	PosterPath          *string             `json:"poster_path"`
	BackdropPath        *string             `json:"backdrop_path"`
	Popularity          float64             `json:"popularity"`
	Tagline             string              `json:"tagline"`
	Genres              []Genre             `json:"genres"`
	Networks            []Network           `json:"networks"`
	EpisodeRunTime      []int               `json:"episode_run_time"`
	NumberOfSeasons     int                 `json:"number_of_seasons"`
	ExternalIDs         *ExternalIDs        `json:"external_ids,omitempty"`
	CreatedBy           []TVCreator         `json:"created_by,omitempty"`
	ProductionCompanies []ProductionCompany `json:"production_companies,omitempty"`
	Keywords            *TVKeywords         `json:"keywords,omitempty"`
}

// Genre represents a genre from TMDB.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Network represents a TV network from TMDB.
type Network struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ProductionCompany represents a production company from TMDB.
type ProductionCompany struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// TVCreator represents a series creator.
type TVCreator struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ExternalIDs holds cross-reference IDs.
type ExternalIDs struct {
	ImdbID string `json:"imdb_id"`
	TvdbID int    `json:"tvdb_id"`
}

// Credits is the credits block appended to movie details.
type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// CastMember is one cast entry.
type CastMember struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// CrewMember is one crew entry.
type CrewMember struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

// Keyword is a TMDB keyword.
type Keyword struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MovieKeywords is the keywords block on movies.
type MovieKeywords struct {
	Keywords []Keyword `json:"keywords"`
}

// TVKeywords is the keywords block on series.
type TVKeywords struct {
	Results []Keyword `json:"results"`
}

// ErrorResponse is the TMDB error body.
type ErrorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}
